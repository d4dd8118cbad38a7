// Package discovery encodes and decodes the compact peer-advertisement
// record published on the peer-discovery topic: field 1 is the advertiser's
// public key, field 2 is a repeated list of raw multiaddr byte strings.
// Unknown fields are skipped for forward compatibility.
package discovery

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldPublicKey  = 1
	fieldMultiaddrs = 2
)

// Record is one decoded peer advertisement. Peer is empty when the record
// carried no valid public key; the addresses are still usable as anonymous
// dial candidates.
type Record struct {
	Peer  peer.ID
	Addrs []multiaddr.Multiaddr
}

// HasPeer reports whether the advertiser's identity was recovered.
func (r Record) HasPeer() bool {
	return r.Peer != ""
}

// Decode parses a peer-advertisement record. Malformed multiaddrs are
// silently dropped; an invalid public key yields a record with no peer
// identity but the surviving address list.
func Decode(data []byte) (Record, error) {
	var pubKey []byte
	var rawAddrs [][]byte

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Record{}, fmt.Errorf("malformed record tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldPublicKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Record{}, fmt.Errorf("malformed public key field: %w", protowire.ParseError(n))
			}
			pubKey = v
			data = data[n:]
		case num == fieldMultiaddrs && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Record{}, fmt.Errorf("malformed multiaddr field: %w", protowire.ParseError(n))
			}
			rawAddrs = append(rawAddrs, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Record{}, fmt.Errorf("malformed field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	var rec Record
	if pk, err := crypto.UnmarshalPublicKey(pubKey); err == nil {
		if id, err := peer.IDFromPublicKey(pk); err == nil {
			rec.Peer = id
		}
	}
	for _, raw := range rawAddrs {
		if ma, err := multiaddr.NewMultiaddrBytes(raw); err == nil {
			rec.Addrs = append(rec.Addrs, ma)
		}
	}
	return rec, nil
}

// Encode serializes an advertisement for the given public key and addresses.
func Encode(pub crypto.PubKey, addrs []multiaddr.Multiaddr) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("missing public key")
	}
	pkBytes, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	var out []byte
	out = protowire.AppendTag(out, fieldPublicKey, protowire.BytesType)
	out = protowire.AppendBytes(out, pkBytes)
	for _, a := range addrs {
		out = protowire.AppendTag(out, fieldMultiaddrs, protowire.BytesType)
		out = protowire.AppendBytes(out, a.Bytes())
	}
	return out, nil
}
