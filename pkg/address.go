package reco

import "fmt"

// Address identifies one readout side of one strip.
type Address struct {
	ModuleType  int
	ModuleIndex int
	Rpc         int
	Channel     int
	Side        int
}

// ModuleKey identifies one RPC. Clustering runs independently per ModuleKey.
type ModuleKey struct {
	ModuleType  int
	ModuleIndex int
	Rpc         int
}

// ChannelKey identifies one strip, both sides.
type ChannelKey struct {
	ModuleKey
	Channel int
}

func (a Address) Module() ModuleKey {
	return ModuleKey{ModuleType: a.ModuleType, ModuleIndex: a.ModuleIndex, Rpc: a.Rpc}
}

func (a Address) ChannelKey() ChannelKey {
	return ChannelKey{ModuleKey: a.Module(), Channel: a.Channel}
}

func (a Address) String() string {
	return fmt.Sprintf("type %d sm %d rpc %d ch %d side %d", a.ModuleType, a.ModuleIndex, a.Rpc, a.Channel, a.Side)
}

func (k ModuleKey) Address(channel int, side int) Address {
	return Address{ModuleType: k.ModuleType, ModuleIndex: k.ModuleIndex, Rpc: k.Rpc, Channel: channel, Side: side}
}

func (k ModuleKey) Less(o ModuleKey) bool {
	if k.ModuleType != o.ModuleType {
		return k.ModuleType < o.ModuleType
	}
	if k.ModuleIndex != o.ModuleIndex {
		return k.ModuleIndex < o.ModuleIndex
	}
	return k.Rpc < o.Rpc
}

func (k ModuleKey) String() string {
	return fmt.Sprintf("type %d sm %d rpc %d", k.ModuleType, k.ModuleIndex, k.Rpc)
}

func (k ChannelKey) String() string {
	return fmt.Sprintf("%v ch %d", k.ModuleKey, k.Channel)
}

// AddressScheme packs addresses into the 32-bit words used by the front-end
// and the output files. The detector ID layout changed between geometry
// epochs, the scheme is picked once when the configuration is loaded.
type AddressScheme interface {
	Name() string
	Encode(a Address) (uint32, error)
	Decode(word uint32) (Address, error)
}

const tofSystemID = 6

type bitField struct {
	shift uint
	bits  uint
}

func (f bitField) max() int {
	return (1 << f.bits) - 1
}

func (f bitField) get(word uint32) int {
	return int((word >> f.shift) & uint32(f.max()))
}

func (f bitField) put(value int) uint32 {
	return uint32(value&f.max()) << f.shift
}

type packedScheme struct {
	name        string
	system      bitField
	moduleIndex bitField
	rpc         bitField
	channel     bitField
	side        bitField
	moduleType  bitField
}

// v12: 4 bit system, 8 bit module index, 3 bit rpc, 6 bit channel, 1 bit side, 4 bit type
var schemeV12 = &packedScheme{
	name:        "v12",
	system:      bitField{shift: 0, bits: 4},
	moduleIndex: bitField{shift: 4, bits: 8},
	rpc:         bitField{shift: 12, bits: 3},
	channel:     bitField{shift: 15, bits: 6},
	side:        bitField{shift: 21, bits: 1},
	moduleType:  bitField{shift: 22, bits: 4},
}

// v14: 4 bit system, 7 bit module index, 6 bit rpc, 8 bit channel, 1 bit side, 4 bit type
var schemeV14 = &packedScheme{
	name:        "v14",
	system:      bitField{shift: 0, bits: 4},
	moduleIndex: bitField{shift: 4, bits: 7},
	rpc:         bitField{shift: 11, bits: 6},
	channel:     bitField{shift: 17, bits: 8},
	side:        bitField{shift: 25, bits: 1},
	moduleType:  bitField{shift: 26, bits: 4},
}

func AddressSchemeByName(name string) (AddressScheme, error) {
	switch name {
	case "v12":
		return schemeV12, nil
	case "v14", "":
		return schemeV14, nil
	default:
		return nil, &ErrUnknownAddressScheme{Name: name}
	}
}

func (s *packedScheme) Name() string {
	return s.name
}

func (s *packedScheme) Encode(a Address) (uint32, error) {
	fields := []struct {
		name  string
		value int
		field bitField
	}{
		{"module index", a.ModuleIndex, s.moduleIndex},
		{"rpc", a.Rpc, s.rpc},
		{"channel", a.Channel, s.channel},
		{"side", a.Side, s.side},
		{"module type", a.ModuleType, s.moduleType},
	}
	word := s.system.put(tofSystemID)
	for _, f := range fields {
		if f.value < 0 || f.value > f.field.max() {
			return 0, fmt.Errorf("%s address: %s %d out of range [0, %d]", s.name, f.name, f.value, f.field.max())
		}
		word |= f.field.put(f.value)
	}
	return word, nil
}

func (s *packedScheme) Decode(word uint32) (Address, error) {
	if system := s.system.get(word); system != tofSystemID {
		return Address{}, fmt.Errorf("%s address 0x%08x: system id %d is not ToF", s.name, word, system)
	}
	return Address{
		ModuleType:  s.moduleType.get(word),
		ModuleIndex: s.moduleIndex.get(word),
		Rpc:         s.rpc.get(word),
		Channel:     s.channel.get(word),
		Side:        s.side.get(word),
	}, nil
}
