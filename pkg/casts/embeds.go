package casts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rocketman-21/farcaster-cron/pkg/casts/text"
)

type embed struct {
	URL    string  `json:"url"`
	CastID *castID `json:"castId"`
}

type castID struct {
	Fid  int64     `json:"fid"`
	Hash hashBytes `json:"hash"`
}

// hashBytes accepts the encodings hash fields show up with in exports:
// a hex string, a plain byte array or a serialized Buffer object.
type hashBytes []byte

func (h *hashBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*h = common.FromHex(s)
		return nil
	}

	var arr []byte
	var ints []int
	if err := json.Unmarshal(b, &ints); err == nil {
		arr = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return fmt.Errorf("hash byte %d out of range", v)
			}
			arr[i] = byte(v)
		}
		*h = arr
		return nil
	}

	var buf struct {
		Type string `json:"type"`
		Data []int  `json:"data"`
	}
	if err := json.Unmarshal(b, &buf); err != nil {
		return fmt.Errorf("unsupported hash encoding: %w", err)
	}
	raw, err := json.Marshal(buf.Data)
	if err != nil {
		return err
	}
	return h.UnmarshalJSON(raw)
}

// Permalink is the public URL of a cast.
func Permalink(host, fname string, hash []byte) string {
	return fmt.Sprintf("https://%s/%s/%s", host, fname, hexutil.Encode(hash))
}

// EmbedURLs lists the links a cast embeds. Quoted casts become permalinks
// and are dropped when their author has no known handle. Malformed JSON
// yields no URLs; a malformed entry is skipped on its own.
func EmbedURLs(raw, host string, names text.NameFunc) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	var urls []string
	for _, entry := range entries {
		var e embed
		if err := json.Unmarshal(entry, &e); err != nil {
			continue
		}
		switch {
		case e.URL != "":
			urls = append(urls, e.URL)
		case e.CastID != nil && len(e.CastID.Hash) > 0:
			if names == nil {
				continue
			}
			fname, ok := names(e.CastID.Fid)
			if !ok || fname == "" {
				continue
			}
			urls = append(urls, Permalink(host, fname, e.CastID.Hash))
		}
	}
	return urls
}
