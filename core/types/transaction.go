package types

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"golang.org/x/crypto/sha3"
)

type Transaction struct {
	CreatorAccountID string
	CreatedAt        time.Time
	Counter          uint64
	Quorum           uint32
	Commands         []Command
}

// CanonicalBytes returns the deterministic encoding of the transaction used for hashing.
//
// The layout is a protobuf wire message:
//
//	1: creator_account_id (string)
//	2: created_at in unix milliseconds (varint)
//	3: counter (varint)
//	4: quorum (varint)
//	5: repeated command, each a message holding one variant at its kind's field number
//
// A nil command is encoded as an empty command message.
func (tx *Transaction) CanonicalBytes() []byte {
	b := make([]byte, 0, 64+64*len(tx.Commands))
	b = appendStringField(b, 1, tx.CreatorAccountID)
	b = appendVarintField(b, 2, uint64(tx.CreatedAt.UnixMilli()))
	b = appendVarintField(b, 3, tx.Counter)
	b = appendVarintField(b, 4, uint64(tx.Quorum))
	for _, cmd := range tx.Commands {
		if cmd == nil {
			b = appendMessageField(b, 5, nil)
			continue
		}
		body := cmd.appendCanonical(nil)
		b = appendMessageField(b, 5, appendMessageField(nil, commandFieldNumbers[cmd.Kind()], body))
	}
	return b
}

// Hash returns the content hash of the transaction: lowercase hex SHA3-256 of its canonical bytes.
func (tx *Transaction) Hash() string {
	sum := sha3.Sum256(tx.CanonicalBytes())
	return hex.EncodeToString(sum[:])
}

type transactionJSON struct {
	CreatorAccountID string            `json:"creator_account_id"`
	CreatedAt        time.Time         `json:"created_at"`
	Counter          uint64            `json:"counter"`
	Quorum           uint32            `json:"quorum"`
	Commands         []json.RawMessage `json:"commands"`
}

func (tx Transaction) MarshalJSON() ([]byte, error) {
	raw := transactionJSON{
		CreatorAccountID: tx.CreatorAccountID,
		CreatedAt:        tx.CreatedAt,
		Counter:          tx.Counter,
		Quorum:           tx.Quorum,
		Commands:         make([]json.RawMessage, 0, len(tx.Commands)),
	}
	for i, cmd := range tx.Commands {
		b, err := marshalCommand(cmd)
		if err != nil {
			return nil, errors.Wrapf(err, "can't marshal command #%d", i)
		}
		raw.Commands = append(raw.Commands, b)
	}
	return json.Marshal(raw)
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}
	commands := make([]Command, 0, len(raw.Commands))
	for i, b := range raw.Commands {
		cmd, err := unmarshalCommand(b)
		if err != nil {
			return errors.Wrapf(err, "can't unmarshal command #%d", i)
		}
		commands = append(commands, cmd)
	}
	*tx = Transaction{
		CreatorAccountID: raw.CreatorAccountID,
		CreatedAt:        raw.CreatedAt,
		Counter:          raw.Counter,
		Quorum:           raw.Quorum,
		Commands:         commands,
	}
	return nil
}

// marshalCommand encodes the variant fields together with its "kind" tag.
func marshalCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, errors.Wrap(errs.InvalidArgument, "nil command")
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	kind, err := json.Marshal(cmd.Kind())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out := make([]byte, 0, len(body)+len(kind)+9)
	out = append(out, `{"kind":`...)
	out = append(out, kind...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
		return out, nil
	}
	return append(out, '}'), nil
}

func unmarshalCommand(data []byte) (Command, error) {
	var tag struct {
		Kind CommandKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, errors.WithStack(err)
	}
	switch tag.Kind {
	case CommandKindTransferAsset:
		return decodeCommand[TransferAsset](data)
	case CommandKindAddAssetQuantity:
		return decodeCommand[AddAssetQuantity](data)
	case CommandKindSubtractAssetQuantity:
		return decodeCommand[SubtractAssetQuantity](data)
	case CommandKindCreateAccount:
		return decodeCommand[CreateAccount](data)
	case CommandKindCreateAsset:
		return decodeCommand[CreateAsset](data)
	case CommandKindSetAccountDetail:
		return decodeCommand[SetAccountDetail](data)
	default:
		return nil, errors.Wrapf(errs.InvalidArgument, "unknown command kind %q", tag.Kind)
	}
}

func decodeCommand[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, errors.WithStack(err)
	}
	return cmd, nil
}
