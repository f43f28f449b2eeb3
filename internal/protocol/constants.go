package protocol

// Inbound frame header: [4B payload_length little-endian].
// The payload starts with a 3-character ASCII command tag.
const (
	LengthHeaderSize = 4
	TagSize          = 3
)

// Maximum inbound payload size (4 MB). Large enough for any clipboard
// transfer the gateway is allowed to send; anything beyond it means the
// stream is corrupt.
const MaxPayloadSize = 4 * 1024 * 1024

// Outbound image metadata block: 9 little-endian uint32 fields
// (tag, idx, x, y, w, h, format, quality, fullscreen) after the length header.
const ImageMetaSize = 36

// ImageTag marks an updates-pipe frame as an image. Text frames carry no
// tag: their first UTF-16LE code units are never zero, which is how the
// gateway tells the two apart.
const ImageTag = 0

// Command identifies one gateway command.
type Command int

const (
	// connection bootstrap
	CmdServerAddress Command = iota
	CmdVMGUID
	CmdUserDomain
	CmdUserName
	CmdUserPassword
	CmdStartProgram
	CmdConnect

	// browser
	CmdBrowserResize
	CmdBrowserPulse

	// keyboard
	CmdKeyUnicode
	CmdKeyScancode

	// mouse
	CmdMouseMove
	CmdMouseLeftButton
	CmdMouseMiddleButton
	CmdMouseRightButton
	CmdMouseWheelUp
	CmdMouseWheelDown

	// control
	CmdScaleDisplay
	CmdReconnectSession
	CmdImageEncoding
	CmdImageQuality
	CmdImageQuantity
	CmdAudioFormat
	CmdAudioBitrate
	CmdScreenshotConfig
	CmdStartScreenshots
	CmdStopScreenshots
	CmdTakeScreenshot
	CmdFullscreenUpdate
	CmdClipboard
	CmdClose
)

/*
3-character tags are used to serialize commands instead of numbers; they make
log traces readable and must match the tags used by the gateway. Commands can
be reordered without breaking the wire format.
*/
var commandTags = map[string]Command{
	"SRV": CmdServerAddress,
	"VMG": CmdVMGUID,
	"DOM": CmdUserDomain,
	"USR": CmdUserName,
	"PWD": CmdUserPassword,
	"PRG": CmdStartProgram,
	"CON": CmdConnect,
	"RSZ": CmdBrowserResize,
	"PLS": CmdBrowserPulse,
	"KUC": CmdKeyUnicode,
	"KSC": CmdKeyScancode,
	"MMO": CmdMouseMove,
	"MLB": CmdMouseLeftButton,
	"MMB": CmdMouseMiddleButton,
	"MRB": CmdMouseRightButton,
	"MWU": CmdMouseWheelUp,
	"MWD": CmdMouseWheelDown,
	"SCA": CmdScaleDisplay,
	"RCN": CmdReconnectSession,
	"ECD": CmdImageEncoding,
	"QLT": CmdImageQuality,
	"QNT": CmdImageQuantity,
	"AUD": CmdAudioFormat,
	"BIT": CmdAudioBitrate,
	"SSC": CmdScreenshotConfig,
	"SS1": CmdStartScreenshots,
	"SS0": CmdStopScreenshots,
	"SCN": CmdTakeScreenshot,
	"FSU": CmdFullscreenUpdate,
	"CLP": CmdClipboard,
	"CLO": CmdClose,
}

var tagByCommand = func() map[Command]string {
	m := make(map[Command]string, len(commandTags))
	for tag, cmd := range commandTags {
		m[cmd] = tag
	}
	return m
}()

// LookupCommand resolves a 3-character tag. The boolean is false for
// unknown tags, which the reader loop drops silently.
func LookupCommand(tag string) (Command, bool) {
	cmd, ok := commandTags[tag]
	return cmd, ok
}

func (c Command) String() string {
	if tag, ok := tagByCommand[c]; ok {
		return tag
	}
	return "???"
}

// EncodingMode is the client-selected encoding strategy.
type EncodingMode int

const (
	EncodingAuto EncodingMode = 0
	EncodingPNG  EncodingMode = 1
	EncodingJPEG EncodingMode = 2
	EncodingWebP EncodingMode = 3
)

func (m EncodingMode) String() string {
	switch m {
	case EncodingAuto:
		return "auto"
	case EncodingPNG:
		return "png"
	case EncodingJPEG:
		return "jpeg"
	case EncodingWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the four defined modes.
func (m EncodingMode) Valid() bool {
	return m >= EncodingAuto && m <= EncodingWebP
}

// ImageFormat is the format of one encoded update, as reported to the
// gateway. Distinct from EncodingMode: a mode is a strategy, a format is
// what one image actually is.
type ImageFormat int

const (
	FormatCursor ImageFormat = 0
	FormatPNG    ImageFormat = 1
	FormatJPEG   ImageFormat = 2
	FormatWebP   ImageFormat = 3
)

func (f ImageFormat) String() string {
	switch f {
	case FormatCursor:
		return "cur"
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// Quality is a lossy-encoder quality tier (%). The same base values are
// used for JPEG and WebP; PNG is lossless and always reports Highest.
type Quality int

const (
	QualityLow     Quality = 10
	QualityMedium  Quality = 25
	QualityHigh    Quality = 50 // default after an encoding mode change
	QualityHigher  Quality = 75 // fullscreen updates in adaptive mode
	QualityHighest Quality = 100
)

// AudioFormat selects the gateway-side audio encoding. Stored only; the
// bridge never encodes audio itself.
type AudioFormat int

const (
	AudioNone AudioFormat = 0
	AudioWAV  AudioFormat = 1 // uncompressed PCM 44100 Hz, 16 bits stereo
	AudioMP3  AudioFormat = 2 // default
)

// ThrottledQuantity reports whether an image quantity (IPS sampling %)
// engages the region throttle. Any other value (100 in particular)
// forwards every region event.
func ThrottledQuantity(q int) bool {
	switch q {
	case 5, 10, 20, 25, 50:
		return true
	}
	return false
}
