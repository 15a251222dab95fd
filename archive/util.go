package archive

import (
	"sort"

	"github.com/byte271/sixcy/index"
)

func syntheticName(fileID uint32) string {
	return index.SyntheticFileName(fileID)
}

func sortRecordsByID(records []index.FileIndexRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
