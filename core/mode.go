package core

// ProtocolMode is the sticky interpretation applied to lines that do not
// announce their own protocol.
type ProtocolMode uint8

const (
	ModeText ProtocolMode = iota
	ModeJSON
)

func (m ProtocolMode) String() string {
	if m == ModeJSON {
		return "json"
	}
	return "text"
}

// Build metadata reported by diagnostics.
const (
	FirmwareBuild    = 14.02
	FirmwareVersion  = 0.96
	HardwarePlatform = 3
	MagicNum         = 0x12EF
)
