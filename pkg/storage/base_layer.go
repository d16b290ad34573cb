package storage

import (
	"github.com/starkware-libs/papyrus-go/pkg/kv"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/serialization"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// baseLayerRow is the newest block known to be proven on the base layer,
// as reported by the L1 watcher.
type baseLayerRow struct {
	Block types.BlockNumber
	Hash  types.BlockHash
}

var baseLayerTable = kv.NewTable(
	kv.TableBaseLayer,
	func(struct{}) []byte { return []byte{0} },
	func(v baseLayerRow) ([]byte, error) {
		return serialization.Encode(func(w serialization.Writer) error {
			if err := serialization.WriteBlockNumber(w, v.Block); err != nil {
				return err
			}
			return serialization.WriteFelt(w, v.Hash)
		})
	},
	func(b []byte) (baseLayerRow, error) {
		return serialization.Decode(b, func(r serialization.Reader) (baseLayerRow, error) {
			var row baseLayerRow
			var err error
			if row.Block, err = serialization.ReadBlockNumber(r); err != nil {
				return row, err
			}
			row.Hash, err = serialization.ReadFelt(r)
			return row, err
		})
	},
)

// GetBaseLayerTip reads the newest base-layer-proven block, if one has
// been recorded.
func (t *readTxn) GetBaseLayerTip() (types.BlockNumber, types.BlockHash, bool, error) {
	row, ok, err := baseLayerTable.Get(t.kv, struct{}{})
	if err != nil || !ok {
		return 0, types.BlockHash{}, false, err
	}
	return row.Block, row.Hash, true, nil
}

// UpdateBaseLayerTip records block n as proven on the base layer and sets
// the BaseLayer marker past it. The base layer finalizes monotonically,
// so the row is simply replaced.
func (t *RwTxn) UpdateBaseLayerTip(n types.BlockNumber, hash types.BlockHash) error {
	if err := baseLayerTable.Upsert(t.inner, struct{}{}, baseLayerRow{Block: n, Hash: hash}); err != nil {
		return err
	}
	return advanceMarker(t.inner, types.MarkerBaseLayer, n)
}

// RevertBaseLayerTip clears the recorded base-layer tip and rolls the
// marker back to zero. An L1 reorg past a proven block invalidates the
// whole pointer rather than stepping it.
func (t *RwTxn) RevertBaseLayerTip() error {
	if _, _, ok, err := t.GetBaseLayerTip(); err != nil {
		return err
	} else if !ok {
		log.Warn("storage: revert of unset base-layer tip is a no-op")
		return nil
	}
	if err := baseLayerTable.Delete(t.inner, struct{}{}); err != nil {
		return err
	}
	return retreatMarker(t.inner, types.MarkerBaseLayer, 0)
}
