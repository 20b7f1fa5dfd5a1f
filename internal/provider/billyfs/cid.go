package billyfs

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudfs/mountfs/internal/provider"
)

// readCardID fills the identification fields of info from a sysfs-style
// device directory. Missing or malformed files leave their field zero.
func readCardID(dir string, info *provider.SDInfo) {
	if dir == "" {
		return
	}

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}

	info.ManufacturerID = uint8(parseHex(read("manfid")))
	info.OEMID = decodeOEM(read("oemid"))
	info.ProductName = read("name")
	info.RevisionMajor = uint8(parseHex(read("hwrev")))
	info.RevisionMinor = uint8(parseHex(read("fwrev")))
	info.SerialNumber = uint32(parseHex(read("serial")))

	// date is "MM/YYYY"
	if month, year, ok := strings.Cut(read("date"), "/"); ok {
		m, _ := strconv.ParseUint(month, 10, 8)
		y, _ := strconv.ParseUint(year, 10, 16)
		info.ManufacturingMonth = uint8(m)
		info.ManufacturingYear = uint16(y)
	}
}

func parseHex(s string) uint64 {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0
	}
	return v
}

// decodeOEM turns the two-byte OEM id (e.g. 0x5344) into its ASCII form ("SD").
func decodeOEM(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ""
	}
	return strings.TrimLeft(string(raw), "\x00")
}
