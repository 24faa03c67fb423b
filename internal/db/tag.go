package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/go/support/db"
)

const tagTableName = "transaction_tags"

// TagType is the direction/kind classification of a transaction.
type TagType string

const (
	TagIncoming         TagType = "incoming"
	TagOutgoing         TagType = "outgoing"
	TagCreateAccount    TagType = "createAccount"
	TagApprove          TagType = "approve"
	TagSwap             TagType = "swap"
	TagContractCreation TagType = "contractCreation"
)

// TagProtocol is the asset-class classification of a transaction.
type TagProtocol string

const (
	TagProtocolNative          TagProtocol = "native"
	TagProtocolCreditAlphanum4 TagProtocol = "creditAlphanum4"
)

// Tag is a derived classification label attached to a transaction.
// ContractAddress carries the asset issuer for non-native assets; empty
// means none.
type Tag struct {
	Type            TagType
	Protocol        TagProtocol
	ContractAddress string
}

// Conforms reports whether the tag satisfies every non-wildcard field of the
// query.
func (t Tag) Conforms(q TagQuery) bool {
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	if q.Protocol != "" && t.Protocol != q.Protocol {
		return false
	}
	if q.ContractAddress != "" && t.ContractAddress != q.ContractAddress {
		return false
	}
	return true
}

// TagQuery is an AND-filter over tag fields; zero-valued fields are
// wildcards.
type TagQuery struct {
	Type            TagType
	Protocol        TagProtocol
	ContractAddress string
}

func (q TagQuery) IsEmpty() bool {
	return q.Type == "" && q.Protocol == "" && q.ContractAddress == ""
}

// TagRecord is one tag row, joined to transactions by hash.
type TagRecord struct {
	Hash            string      `db:"transaction_hash"`
	Type            TagType     `db:"type"`
	Protocol        TagProtocol `db:"protocol"`
	ContractAddress string      `db:"contract_address"`
}

func (r TagRecord) Tag() Tag {
	return Tag{Type: r.Type, Protocol: r.Protocol, ContractAddress: r.ContractAddress}
}

// SaveTags upserts the batch in one write transaction. The tag table carries
// a replace-on-conflict unique constraint over the full row, so re-deriving
// tags for the same transaction never accumulates duplicates.
func (s *Store) SaveTags(ctx context.Context, records []TagRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inWriteTx(ctx, func(sess db.SessionInterface) error {
		query := sq.Replace(tagTableName).Columns(
			"transaction_hash", "type", "protocol", "contract_address",
		)
		for _, r := range records {
			query = query.Values(r.Hash, r.Type, r.Protocol, r.ContractAddress)
		}
		_, err := sess.Exec(ctx, query)
		return err
	})
}

// Tags returns all tag rows stored for a transaction hash.
func (s *Store) Tags(ctx context.Context, hash string) ([]TagRecord, error) {
	var results []TagRecord
	query := sq.Select("*").From(tagTableName).Where(sq.Eq{"transaction_hash": hash})
	if err := s.sess.Select(ctx, &results, query); err != nil {
		return nil, err
	}
	return results, nil
}
