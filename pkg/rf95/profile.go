package rf95

import "fmt"

// ModemProfile holds the values written to RegModemConfig1, RegModemConfig2
// and RegModemConfig3.
type ModemProfile struct {
	Config1 byte
	Config2 byte
	Config3 byte
}

var (
	// ProfileMediumRange is Bw125 Cr4/5 Sf128 with CRC, the default after Init.
	ProfileMediumRange = ModemProfile{0x72, 0x74, 0x00}
	// ProfileFastShortRange is Bw500 Cr4/5 Sf128 with CRC.
	ProfileFastShortRange = ModemProfile{0x92, 0x74, 0x00}
	// ProfileLongRangeNarrow is Bw31.25 Cr4/8 Sf512 with CRC.
	ProfileLongRangeNarrow = ModemProfile{0x48, 0x94, 0x00}
	// ProfileLongRangeSlow is Bw125 Cr4/8 Sf4096 with CRC.
	ProfileLongRangeSlow = ModemProfile{0x78, 0xc4, 0x00}
)

var profilesByName = map[string]ModemProfile{
	"medium":      ProfileMediumRange,
	"fast":        ProfileFastShortRange,
	"long-narrow": ProfileLongRangeNarrow,
	"long-slow":   ProfileLongRangeSlow,
}

// ProfileByName looks up one of the named presets.
func ProfileByName(name string) (ModemProfile, error) {
	p, ok := profilesByName[name]
	if !ok {
		return ModemProfile{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidProfile, name)
	}
	return p, nil
}

// NewModemProfile composes a profile from typed fields, rejecting values
// that are not part of the register layout.
func NewModemProfile(bw Bandwidth, cr CodingRate, header HeaderMode, sf SpreadingFactor, crc, agcAuto bool) (ModemProfile, error) {
	if bw&0x0f != 0 || bw > Bw500k {
		return ModemProfile{}, fmt.Errorf("%w: bandwidth 0x%02x", ErrInvalidProfile, byte(bw))
	}
	if cr < CodingRate4_5 || cr > CodingRate4_8 || cr&0x01 != 0 {
		return ModemProfile{}, fmt.Errorf("%w: coding rate 0x%02x", ErrInvalidProfile, byte(cr))
	}
	if header > HeaderImplicit {
		return ModemProfile{}, fmt.Errorf("%w: header mode 0x%02x", ErrInvalidProfile, byte(header))
	}
	if sf&0x0f != 0 || sf < Sf64 || sf > Sf4096 {
		return ModemProfile{}, fmt.Errorf("%w: spreading factor 0x%02x", ErrInvalidProfile, byte(sf))
	}

	p := ModemProfile{
		Config1: byte(bw) | byte(cr) | byte(header),
		Config2: byte(sf),
	}
	if crc {
		p.Config2 |= RxPayloadCrcOn
	}
	if agcAuto {
		p.Config3 = AgcAutoOn
	}
	return p, nil
}

func (p ModemProfile) Bandwidth() Bandwidth {
	return Bandwidth(p.Config1 & 0xf0)
}

func (p ModemProfile) SpreadingFactor() SpreadingFactor {
	return SpreadingFactor(p.Config2 & 0xf0)
}

func (p ModemProfile) String() string {
	return fmt.Sprintf("modem(0x%02x,0x%02x,0x%02x)", p.Config1, p.Config2, p.Config3)
}
