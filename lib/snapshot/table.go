// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package snapshot

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// PrintTable writes rows as an aligned, human readable table.
func PrintTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 1, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tMODIFIED\tSIZE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Name, FormatTime(r.CreationTime), FormatTime(r.ModificationTime), r.Size)
	}
	return tw.Flush()
}
