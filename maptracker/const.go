package maptracker

// Template tracking configuration
const (
	// Half size of the square neighbourhood cut around the calibrated point.
	TemplateHalf = 5

	DefaultMatchThreshold = 0.75
	// Frames a low-confidence match may fall back to the cached position.
	DefaultLostFrameGrace = 5
)

// Player dot colour (#FFFF88-ish yellow diamond)
const (
	dotMinR = 250
	dotMinG = 250
	dotMaxB = 140
)

// Matcher search configuration
const (
	// Inputs costing at most this many pixel comparisons are scanned in full.
	exhaustiveMaxOps = 8_000_000
	// Half-scale peaks refined at full scale on larger inputs.
	coarseCandidates = 8
	// Minimum distance between two half-scale peaks.
	candidateSpacing = 2
	// Full-scale refinement window around an upscaled peak.
	refineRadius = 3
)
