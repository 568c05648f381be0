package keymap

const unsupportedKey = -1

// Win32 virtual key codes for every logical key the recorder monitors.
var Win32Keymap = map[Key]int32{
	// Arrows
	"left":  0x25,
	"up":    0x26,
	"right": 0x27,
	"down":  0x28,
	// Modifiers and editing
	"space":     0x20,
	"alt":       0x12, // VK_MENU
	"ctrl":      0x11,
	"shift":     0x10,
	"tab":       0x09,
	"enter":     0x0D,
	"backspace": 0x08,
	"delete":    0x2E,
	"insert":    0x2D,
	"home":      0x24,
	"end":       0x23,
	"page up":   0x21,
	"page down": 0x22,
	"esc":       0x1B,
	"num lock":  0x90,
	// Letters
	"a": 0x41, "b": 0x42, "c": 0x43, "d": 0x44, "e": 0x45, "f": 0x46, "g": 0x47,
	"h": 0x48, "i": 0x49, "j": 0x4A, "k": 0x4B, "l": 0x4C, "m": 0x4D, "n": 0x4E,
	"o": 0x4F, "p": 0x50, "q": 0x51, "r": 0x52, "s": 0x53, "t": 0x54, "u": 0x55,
	"v": 0x56, "w": 0x57, "x": 0x58, "y": 0x59, "z": 0x5A,
	// Digits
	"0": 0x30, "1": 0x31, "2": 0x32, "3": 0x33, "4": 0x34,
	"5": 0x35, "6": 0x36, "7": 0x37, "8": 0x38, "9": 0x39,
	// Punctuation (OEM codes, US layout)
	"-":  0xBD,
	"=":  0xBB,
	"[":  0xDB,
	"]":  0xDD,
	"\\": 0xDC,
	";":  0xBA,
	"'":  0xDE,
	",":  0xBC,
	".":  0xBE,
	"/":  0xBF,
	"`":  0xC0,
	// Function keys
	"f1": 0x70, "f2": 0x71, "f3": 0x72, "f4": 0x73, "f5": 0x74, "f6": 0x75,
	"f7": 0x76, "f8": 0x77, "f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": 0x7B,
	// Keypad
	"keypad 0": 0x60, "keypad 1": 0x61, "keypad 2": 0x62, "keypad 3": 0x63, "keypad 4": 0x64,
	"keypad 5": 0x65, "keypad 6": 0x66, "keypad 7": 0x67, "keypad 8": 0x68, "keypad 9": 0x69,
	"keypad *": 0x6A,
	"keypad +": 0x6B,
	"keypad -": 0x6D,
	"keypad .": 0x6E,
	"keypad /": 0x6F,
	// Shares VK_RETURN with "enter"; only the extended-key flag differs.
	"keypad enter": unsupportedKey,
}
