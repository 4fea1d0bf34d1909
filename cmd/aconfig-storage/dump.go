// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bureau-foundation/aconfigd/lib/storagefile"
)

// fileDump is the decoded content of one storage file. Exactly one of
// the entry slices is set, matching FileType.
type fileDump struct {
	Container  string `json:"container"`
	Version    uint32 `json:"version"`
	FileType   string `json:"file_type"`
	FileSize   uint32 `json:"file_size"`
	NumEntries uint32 `json:"num_entries"`

	Packages []packageEntry `json:"packages,omitempty"`
	Flags    []flagEntry    `json:"flags,omitempty"`
	Values   []valueEntry   `json:"values,omitempty"`
	Infos    []infoEntry    `json:"infos,omitempty"`
}

type packageEntry struct {
	Name              string `json:"name"`
	PackageID         uint32 `json:"package_id"`
	BooleanStartIndex uint32 `json:"boolean_start_index"`
	Fingerprint       uint64 `json:"fingerprint"`
}

type flagEntry struct {
	PackageID uint32 `json:"package_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Index     uint16 `json:"index"`
}

type valueEntry struct {
	Index uint32 `json:"index"`
	Value bool   `json:"value"`
}

type infoEntry struct {
	Index             uint32 `json:"index"`
	IsReadWrite       bool   `json:"is_read_write"`
	HasServerOverride bool   `json:"has_server_override"`
	HasLocalOverride  bool   `json:"has_local_override"`
}

func dumpFile(data []byte) (*fileDump, error) {
	header, err := storagefile.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	dump := &fileDump{
		Container:  header.Container,
		Version:    header.Version,
		FileType:   header.FileType.String(),
		FileSize:   header.FileSize,
		NumEntries: header.NumEntries,
	}

	switch header.FileType {
	case storagefile.PackageMapFile:
		packages, err := storagefile.Packages(data)
		if err != nil {
			return nil, err
		}
		for _, info := range packages {
			dump.Packages = append(dump.Packages, packageEntry(info))
		}
	case storagefile.FlagMapFile:
		flags, err := storagefile.Flags(data)
		if err != nil {
			return nil, err
		}
		for _, flag := range flags {
			dump.Flags = append(dump.Flags, flagEntry{
				PackageID: flag.PackageID,
				Name:      flag.Name,
				Type:      flag.Type.String(),
				Index:     flag.Index,
			})
		}
	case storagefile.FlagValFile:
		count, err := storagefile.NumFlags(data)
		if err != nil {
			return nil, err
		}
		for index := range count {
			value, err := storagefile.BoolValue(data, index)
			if err != nil {
				return nil, err
			}
			dump.Values = append(dump.Values, valueEntry{Index: index, Value: value})
		}
	case storagefile.FlagInfoFile:
		count, err := storagefile.NumFlags(data)
		if err != nil {
			return nil, err
		}
		for index := range count {
			attributes, err := storagefile.Attributes(data, index)
			if err != nil {
				return nil, err
			}
			dump.Infos = append(dump.Infos, infoEntry{
				Index:             index,
				IsReadWrite:       attributes&storagefile.IsReadWrite != 0,
				HasServerOverride: attributes&storagefile.HasServerOverride != 0,
				HasLocalOverride:  attributes&storagefile.HasLocalOverride != 0,
			})
		}
	}
	return dump, nil
}

func (d *fileDump) writeText(w io.Writer) error {
	fmt.Fprintf(w, "container: %s\nversion: %d\nfile_type: %s\nfile_size: %d\nnum_entries: %d\n",
		d.Container, d.Version, d.FileType, d.FileSize, d.NumEntries)
	if d.NumEntries == 0 {
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	switch {
	case d.Packages != nil:
		fmt.Fprintln(tw, "PACKAGE\tID\tBOOLEAN_START\tFINGERPRINT")
		for _, entry := range d.Packages {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%016x\n", entry.Name, entry.PackageID, entry.BooleanStartIndex, entry.Fingerprint)
		}
	case d.Flags != nil:
		fmt.Fprintln(tw, "PACKAGE_ID\tFLAG\tTYPE\tINDEX")
		for _, entry := range d.Flags {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", entry.PackageID, entry.Name, entry.Type, entry.Index)
		}
	case d.Values != nil:
		fmt.Fprintln(tw, "INDEX\tVALUE")
		for _, entry := range d.Values {
			fmt.Fprintf(tw, "%d\t%t\n", entry.Index, entry.Value)
		}
	case d.Infos != nil:
		fmt.Fprintln(tw, "INDEX\tREAD_WRITE\tSERVER_OVERRIDE\tLOCAL_OVERRIDE")
		for _, entry := range d.Infos {
			fmt.Fprintf(tw, "%d\t%t\t%t\t%t\n", entry.Index, entry.IsReadWrite, entry.HasServerOverride, entry.HasLocalOverride)
		}
	}
	return tw.Flush()
}
