package ewf

import (
	"os"

	"github.com/evidencekit/ewf/internal/chunktable"
	"github.com/evidencekit/ewf/internal/format"
	"github.com/evidencekit/ewf/internal/ioerr"
	"github.com/evidencekit/ewf/internal/media"
	"github.com/evidencekit/ewf/internal/pool"
	"github.com/evidencekit/ewf/internal/section"
)

// Open resolves seedPath's full segment set via Glob and opens it for
// reading.
func Open(seedPath string, opts ...Option) (*Handle, error) {
	paths, err := Glob(seedPath)
	if err != nil {
		return nil, err
	}
	return OpenFiles(paths, opts...)
}

// OpenFiles opens an explicit, ordered list of segment files for
// reading, given an explicit list rather than discovering it via Glob.
func OpenFiles(paths []string, opts ...Option) (*Handle, error) {
	if len(paths) == 0 {
		return nil, ioerr.Errorf(ioerr.KindInvalidArgument, "open: no segment paths given")
	}
	cfg := NewConfig(opts...)
	p := pool.New(cfg.MaxOpenSegments, cfg.Logger)

	h := &Handle{
		cfg:        cfg,
		pool:       p,
		segments:   newSegmentIndex(),
		chunkTable: chunktable.NewIndex(),
		cache:      &chunkCache{},
		log:        cfg.Logger,
		mode:       modeRead,
	}

	for i, path := range paths {
		number := i + 1
		id := p.Open(path, os.O_RDONLY, 0)

		variant, smart, err := detectVariant(p, id)
		if err != nil {
			p.CloseAll()
			return nil, ioerr.Wrap(ioerr.KindIO, err, "open: detect variant of "+path).With("segment", number)
		}
		if i == 0 {
			h.variant = variant
			h.smart = smart
		}

		sections, err := parseSegmentSections(p, id, variant)
		if err != nil {
			p.CloseAll()
			return nil, ioerr.Wrap(ioerr.KindCorruptData, err, "open: parse sections of "+path).With("segment", number)
		}
		seg := &segmentFile{number: number, path: path, poolID: id, sections: sections}
		h.segments.append(seg)

		if i == 0 {
			if err := h.loadPreamble(seg); err != nil {
				p.CloseAll()
				return nil, err
			}
		}
		if err := h.loadTables(seg); err != nil {
			p.CloseAll()
			return nil, err
		}
		if err := h.loadTrailer(seg); err != nil {
			p.CloseAll()
			return nil, err
		}
	}

	if err := h.media.Validate(); err != nil {
		p.CloseAll()
		return nil, err
	}
	if h.media.MediaSize == 0 {
		h.media.MediaSize = uint64(h.media.BytesPerSector) * h.media.NumberOfSectors
	}
	return h, nil
}

// detectVariant peeks a segment's signature to classify it as v1, v2 or
// SMART.
func detectVariant(p *pool.Pool, id pool.ID) (format.Variant, bool, error) {
	sig := make([]byte, 8)
	if _, err := p.ReadAt(id, 0, sig); err != nil {
		return format.VariantUnknown, false, err
	}
	switch {
	case bytesEqual(sig, format.SignatureV1[:]):
		return format.VariantV1, false, nil
	case bytesEqual(sig, format.SignatureSMART[:]):
		return format.VariantSMART, true, nil
	case bytesEqual(sig, format.SignatureV2[:]):
		return format.VariantV2, false, nil
	default:
		return format.VariantUnknown, false, ioerr.Errorf(ioerr.KindUnsupported, "open: unrecognized segment signature")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// loadPreamble decodes the header2, header and volume (or disk) sections
// from the first segment; an xheader section is not read.
func (h *Handle) loadPreamble(seg *segmentFile) error {
	headerMap := map[string]string{}
	if descs := seg.sectionsOfType(format.TypeHeader2); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		decoded, err := section.DecodeHeader(payload, section.HeaderKindHeader2, h.cfg.HeaderCodepage)
		if err != nil {
			return err
		}
		for k, v := range decoded {
			headerMap[k] = v
		}
	}
	if descs := seg.sectionsOfType(format.TypeHeader); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		decoded, err := section.DecodeHeader(payload, section.HeaderKindHeader, h.cfg.HeaderCodepage)
		if err != nil {
			return err
		}
		for k, v := range decoded {
			if _, exists := headerMap[k]; !exists {
				headerMap[k] = v
			}
		}
	}
	h.header = media.FromHeaderMap(headerMap)

	volType := format.TypeVolume
	if descs := seg.sectionsOfType(format.TypeDisk); len(descs) > 0 {
		volType = format.TypeDisk
	}
	descs := seg.sectionsOfType(volType)
	if len(descs) == 0 {
		return ioerr.Errorf(ioerr.KindCorruptData, "open: no volume/disk section in first segment")
	}
	payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
	if err != nil {
		return err
	}
	vol, err := section.DecodeVolume(payload)
	if err != nil {
		return err
	}
	h.media = media.FromVolume(vol)
	return nil
}

// loadTables resolves this segment's table/table2 (or sector_table)
// sections against its sectors (or sector_data) section and appends the
// result to the global chunk table.
func (h *Handle) loadTables(seg *segmentFile) error {
	sectorsType := format.TypeSectors
	tableType := format.TypeTable
	table2Type := format.TypeTable2
	if h.variant == format.VariantV2 {
		sectorsType = format.TypeSectorData
		tableType = format.TypeSectorTable
		table2Type = "" // v2 is read from sector_table alone; the table2 copy the writer emits is not consulted
	}

	sectorsDescs := seg.sectionsOfType(sectorsType)
	tableDescs := seg.sectionsOfType(tableType)
	var table2Descs []*section.Descriptor
	if table2Type != "" {
		table2Descs = seg.sectionsOfType(table2Type)
	}

	for i, tableDesc := range tableDescs {
		if i >= len(sectorsDescs) {
			return ioerr.Errorf(ioerr.KindCorruptData, "open: table/sectors count mismatch in segment %d", seg.number)
		}
		sectorsDesc := sectorsDescs[i]

		tablePayload, tErr := section.ReadPayload(h.pool, seg.poolID, tableDesc)
		var tBase uint64
		var tEntries []section.RawTableEntry
		if tErr == nil {
			tBase, tEntries, tErr = section.DecodeTable(tablePayload)
		}

		var t2Base uint64
		var t2Entries []section.RawTableEntry
		var t2Err error = ioerr.Errorf(ioerr.KindNotFound, "no table2 section")
		if i < len(table2Descs) {
			var payload []byte
			payload, t2Err = section.ReadPayload(h.pool, seg.poolID, table2Descs[i])
			if t2Err == nil {
				t2Base, t2Entries, t2Err = section.DecodeTable(payload)
			}
		}
		_ = tBase
		_ = t2Base

		entries, err := chunktable.Reconcile(chunktable.TablePair{
			Table: tEntries, TableErr: tErr,
			Table2: t2Entries, Table2Err: t2Err,
		}, seg.path, h.log)
		if err != nil {
			return err
		}
		h.chunkTable.AppendSegment(seg.number, entries, sectorsDesc.PayloadOffset, sectorsDesc.PayloadSize)
	}
	return nil
}

// loadTrailer decodes the hash/digest/error2/session/ltree sections, if
// present, from a segment (normally only the final one carries them).
func (h *Handle) loadTrailer(seg *segmentFile) error {
	if descs := seg.sectionsOfType(format.TypeDigest); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		md5sum, sha1sum, err := section.DecodeDigest(payload)
		if err != nil {
			return err
		}
		h.hash = media.FromDigest(md5sum, sha1sum)
	} else if descs := seg.sectionsOfType(format.TypeHash); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		md5sum, err := section.DecodeHash(payload)
		if err != nil {
			return err
		}
		h.hash = media.FromHash(md5sum)
	}

	if descs := seg.sectionsOfType(format.TypeError2); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		ranges, err := section.DecodeSectorRanges(payload)
		if err != nil {
			return err
		}
		h.checksumErrors = media.FromErrorRanges(ranges)
	}

	if descs := seg.sectionsOfType(format.TypeSession); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		ranges, err := section.DecodeSectorRanges(payload)
		if err != nil {
			return err
		}
		h.sessions = media.FromSessionRanges(ranges)
	}

	if descs := seg.sectionsOfType(format.TypeLtree); len(descs) > 0 {
		payload, err := section.ReadPayload(h.pool, seg.poolID, descs[0])
		if err != nil {
			return err
		}
		xml, err := section.DecodeLtree(payload)
		if err != nil {
			return err
		}
		h.ltreeXML = xml
	}
	return nil
}
