package quotes

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

//go:embed default_quotes.json
var defaultQuotesJSON []byte

type pool struct {
	quotes []Quote
	mtime  time.Time
	size   int64
}

func parsePool(b []byte) ([]Quote, error) {
	var qs []Quote
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&qs); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	out := qs[:0]
	for _, q := range qs {
		if q.Text != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

func loadPoolFile(path string) (pool, error) {
	st, err := os.Stat(path)
	if err != nil {
		return pool{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return pool{}, err
	}
	qs, err := parsePool(b)
	if err != nil {
		return pool{}, err
	}
	return pool{quotes: qs, mtime: st.ModTime(), size: st.Size()}, nil
}

func statFile(path string) (os.FileInfo, error) { return os.Stat(path) }
