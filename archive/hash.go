package archive

import (
	"encoding/json"

	"github.com/byte271/sixcy/errs"
	"github.com/zeebo/blake3"
)

func blake3Sum(data []byte) [32]byte {
	h := blake3.New()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func marshalRecoveryMap(m *RecoveryMap) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindIndexParse, "marshal recovery map")
	}
	return b, nil
}

func unmarshalRecoveryMap(data []byte) (*RecoveryMap, error) {
	var m RecoveryMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(err, errs.KindIndexParse, "unmarshal recovery map")
	}
	return &m, nil
}
