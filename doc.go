// Package strm reads, edits, and writes strm asset archives.
//
// An archive is the magic "strm" followed by entries until end of file. Each
// entry is a big-endian header and its stored payload:
//   - CompressedSize, DecompressedSize, Hash: u32
//   - Unknown: u16, SkinFlag: i16
//   - InnerPath: NUL-terminated
//   - Payload: CompressedSize bytes if nonzero, else DecompressedSize bytes
//
// Payloads are optionally compressed with the legacy back-reference codec and
// tagged with a [SkinFlag] selecting a character variant. Lookups accept the
// [LookupDefault] and [LookupAlt] sentinels, which fall back to the
// variant-less [SkinDefault] entry.
//
// # Reading
//
//	a, err := strm.Open("assets.strm")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	e, err := a.GetEntry("chara/hero/body.mdl", strm.LookupAlt)
//
// # Writing
//
// [Archive.Save] runs the save pipeline for every entry and atomically
// replaces the destination:
//
//	_, err = a.Save(ctx, "assets.strm",
//	    strm.SaveWithCompressionLevel(strm.CompressionLevelAuto),
//	    strm.SaveWithSkipAlreadyCompressed(true),
//	)
package strm
