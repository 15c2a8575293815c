package forge

// OTS header/opcode constants. Only otsOpAttestationBitcoin is used, via
// byte-scan detection; the rest are held for a future full tag-stream
// parser.
var otsFileMagic = [32]byte{
	0x00, 0x4f, 0x70, 0x65, 0x6e, 0x54, 0x69, 0x6d,
	0x65, 0x73, 0x74, 0x61, 0x6d, 0x70, 0x73, 0x00,
	0x00, 0x50, 0x72, 0x6f, 0x6f, 0x66, 0x00, 0xbf,
	0x89, 0xe2, 0xe8, 0x84, 0xe8, 0x92, 0x94, 0x01,
}

const (
	otsOpSHA256              byte = 0x08
	otsOpAppend              byte = 0xf0
	otsOpPrepend             byte = 0xf1
	otsOpAttestationPending  byte = 0x83
	otsOpAttestationBitcoin  byte = 0x05
)

// OTSFileMagic returns a copy of the canonical 32-byte OpenTimestamps file
// magic bytes.
func OTSFileMagic() [32]byte { return otsFileMagic }
