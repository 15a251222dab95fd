package archive

import (
	"os"

	"github.com/byte271/sixcy/index"
	"github.com/pkg/xattr"
	"golang.org/x/sys/unix"
)

// CollectPlatformMetadata gathers real POSIX metadata (owner, group,
// link count, mode, extended attributes) for a file on disk and
// returns it ready for PlatformMetadata.Encode.
func CollectPlatformMetadata(path string, info os.FileInfo) (*index.PlatformMetadata, error) {
	common := &index.CommonMetadata{
		FileSize:    index.MakePointer(uint64(info.Size())),
		ModTimeUnix: index.MakePointer(info.ModTime().Unix()),
		Mode:        index.MakePointer(uint32(info.Mode())),
	}

	var stat unix.Stat_t
	if err := unix.Lstat(path, &stat); err != nil {
		return &index.PlatformMetadata{Common: common}, nil
	}

	posix := &index.POSIXMetadata{
		UID:   index.MakePointer(stat.Uid),
		GID:   index.MakePointer(stat.Gid),
		Nlink: index.MakePointer(uint32(stat.Nlink)),
	}

	xattrs := make(map[string][]byte)
	if names, err := xattr.List(path); err == nil {
		for _, name := range names {
			if val, err := xattr.Get(path, name); err == nil {
				xattrs[name] = val
			}
		}
	}

	return &index.PlatformMetadata{
		Common: common,
		Linux: &index.LinuxMetadata{
			POSIX: posix,
			Xattr: xattrs,
		},
	}, nil
}
