package types

import (
	"time"
)

type BlockHeader struct {
	Height    uint64    `json:"height"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Block is a committed ledger block. Transaction order is the commit order
// inside the block and is part of every index built from it.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

func (b *Block) Height() uint64 {
	return b.Header.Height
}

// BlockHeader returns the header of the block.
func (b *Block) BlockHeader() BlockHeader {
	return b.Header
}
