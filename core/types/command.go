package types

import (
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"
)

// CommandKind is the variant tag of a transaction command.
type CommandKind string

const (
	CommandKindTransferAsset         CommandKind = "transfer_asset"
	CommandKindAddAssetQuantity      CommandKind = "add_asset_quantity"
	CommandKindSubtractAssetQuantity CommandKind = "subtract_asset_quantity"
	CommandKindCreateAccount         CommandKind = "create_account"
	CommandKindCreateAsset           CommandKind = "create_asset"
	CommandKindSetAccountDetail      CommandKind = "set_account_detail"
)

// Command is a closed set of command variants. The unexported method keeps
// new variants inside this package, so a type switch over the variants
// below is complete.
type Command interface {
	Kind() CommandKind

	// appendCanonical appends the deterministic wire encoding of the command body.
	appendCanonical(b []byte) []byte
}

var (
	_ Command = TransferAsset{}
	_ Command = AddAssetQuantity{}
	_ Command = SubtractAssetQuantity{}
	_ Command = CreateAccount{}
	_ Command = CreateAsset{}
	_ Command = SetAccountDetail{}
)

// Canonical field number of each variant inside the encoded command message.
var commandFieldNumbers = map[CommandKind]protowire.Number{
	CommandKindTransferAsset:         1,
	CommandKindAddAssetQuantity:      2,
	CommandKindSubtractAssetQuantity: 3,
	CommandKindCreateAccount:         4,
	CommandKindCreateAsset:           5,
	CommandKindSetAccountDetail:      6,
}

// TransferAsset moves Amount of AssetID from SrcAccountID to DestAccountID.
type TransferAsset struct {
	SrcAccountID  string          `json:"src_account_id"`
	DestAccountID string          `json:"dest_account_id"`
	AssetID       string          `json:"asset_id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
}

func (TransferAsset) Kind() CommandKind { return CommandKindTransferAsset }

// Involves reports whether account is the source or the destination of the transfer.
func (c TransferAsset) Involves(account string) bool {
	return c.SrcAccountID == account || c.DestAccountID == account
}

func (c TransferAsset) appendCanonical(b []byte) []byte {
	b = appendStringField(b, 1, c.SrcAccountID)
	b = appendStringField(b, 2, c.DestAccountID)
	b = appendStringField(b, 3, c.AssetID)
	b = appendStringField(b, 4, c.Description)
	b = appendStringField(b, 5, c.Amount.String())
	return b
}

type AddAssetQuantity struct {
	AccountID string          `json:"account_id"`
	AssetID   string          `json:"asset_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (AddAssetQuantity) Kind() CommandKind { return CommandKindAddAssetQuantity }

func (c AddAssetQuantity) appendCanonical(b []byte) []byte {
	b = appendStringField(b, 1, c.AccountID)
	b = appendStringField(b, 2, c.AssetID)
	b = appendStringField(b, 3, c.Amount.String())
	return b
}

type SubtractAssetQuantity struct {
	AccountID string          `json:"account_id"`
	AssetID   string          `json:"asset_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (SubtractAssetQuantity) Kind() CommandKind { return CommandKindSubtractAssetQuantity }

func (c SubtractAssetQuantity) appendCanonical(b []byte) []byte {
	b = appendStringField(b, 1, c.AccountID)
	b = appendStringField(b, 2, c.AssetID)
	b = appendStringField(b, 3, c.Amount.String())
	return b
}

type CreateAccount struct {
	AccountName string `json:"account_name"`
	DomainID    string `json:"domain_id"`
	PublicKey   string `json:"public_key"`
}

func (CreateAccount) Kind() CommandKind { return CommandKindCreateAccount }

func (c CreateAccount) appendCanonical(b []byte) []byte {
	b = appendStringField(b, 1, c.AccountName)
	b = appendStringField(b, 2, c.DomainID)
	b = appendStringField(b, 3, c.PublicKey)
	return b
}

type CreateAsset struct {
	AssetName string `json:"asset_name"`
	DomainID  string `json:"domain_id"`
	Precision uint8  `json:"precision"`
}

func (CreateAsset) Kind() CommandKind { return CommandKindCreateAsset }

func (c CreateAsset) appendCanonical(b []byte) []byte {
	b = appendStringField(b, 1, c.AssetName)
	b = appendStringField(b, 2, c.DomainID)
	b = appendVarintField(b, 3, uint64(c.Precision))
	return b
}

type SetAccountDetail struct {
	AccountID string `json:"account_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

func (SetAccountDetail) Kind() CommandKind { return CommandKindSetAccountDetail }

func (c SetAccountDetail) appendCanonical(b []byte) []byte {
	b = appendStringField(b, 1, c.AccountID)
	b = appendStringField(b, 2, c.Key)
	b = appendStringField(b, 3, c.Value)
	return b
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
