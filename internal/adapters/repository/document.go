package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/duelkit/internal/domain/bracket"
)

// Key prefixes used by the on-disk layout: {"round1": [{"match1": "A vs B", "result": ""}]}.
const (
	roundKeyPrefix = "round"
	matchKeyPrefix = "match"
	resultKey      = "result"
)

// Accepted date layouts, newest first. Older files carry naive ISO timestamps.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// document is the JSON file stored per tournament.
type document struct {
	Title       string      `json:"title"`
	Name        string      `json:"name,omitempty"`
	Category    string      `json:"category,omitempty"`
	Pairings    []roundDoc  `json:"pairings"`
	MessageInfo messageInfo `json:"message_info"`
	Date        string      `json:"date,omitempty"`
	Revision    int64       `json:"revision,omitempty"`
}

type messageInfo struct {
	GuildID    uint64 `json:"guild_id"`
	CategoryID uint64 `json:"category_id"`
	ChannelID  uint64 `json:"channel_id"`
	MessageID  uint64 `json:"message_id"`
}

type roundDoc struct {
	Index   int
	Matches []matchDoc
}

type matchDoc struct {
	Index  int
	Label  string
	Result string
}

func (r roundDoc) MarshalJSON() ([]byte, error) {
	matches, err := marshal(r.Matches, "")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"`)
	buf.WriteString(roundKeyPrefix + strconv.Itoa(r.Index))
	buf.WriteString(`":`)
	buf.Write(matches)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *roundDoc) UnmarshalJSON(data []byte) error {
	var raw map[string][]matchDoc
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: round object must have one key, got %d", ErrMalformed, len(raw))
	}
	for k, v := range raw {
		idx, err := keyIndex(k, roundKeyPrefix)
		if err != nil {
			return err
		}
		r.Index, r.Matches = idx, v
	}
	return nil
}

func (m matchDoc) MarshalJSON() ([]byte, error) {
	label, err := marshal(m.Label, "")
	if err != nil {
		return nil, err
	}
	result, err := marshal(m.Result, "")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"`)
	buf.WriteString(matchKeyPrefix + strconv.Itoa(m.Index))
	buf.WriteString(`":`)
	buf.Write(label)
	buf.WriteString(`,"` + resultKey + `":`)
	buf.Write(result)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *matchDoc) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	found := false
	for k, v := range raw {
		switch {
		case k == resultKey:
			m.Result = v
		case strings.HasPrefix(k, matchKeyPrefix):
			idx, err := keyIndex(k, matchKeyPrefix)
			if err != nil {
				return err
			}
			m.Index, m.Label = idx, v
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: match object without a %q key", ErrMalformed, matchKeyPrefix+"N")
	}
	return nil
}

// marshal encodes v without escaping &, < and >, matching files written with
// ensure_ascii=False. An empty indent produces compact output.
func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func keyIndex(key, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if !strings.HasPrefix(key, prefix) || err != nil || n < 1 {
		return 0, fmt.Errorf("%w: bad key %q", ErrMalformed, key)
	}
	return n, nil
}

func toDocument(t *bracket.Tournament) document {
	d := document{
		Title:    t.Title,
		Name:     t.Name,
		Category: t.Category,
		Pairings: make([]roundDoc, len(t.Rounds)),
		MessageInfo: messageInfo{
			GuildID:    t.Message.GuildID,
			CategoryID: t.Message.CategoryID,
			ChannelID:  t.Message.ChannelID,
			MessageID:  t.Message.MessageID,
		},
		Revision: t.Revision,
	}
	if d.Title == "" {
		d.Title = bracket.DefaultTitle
	}
	if !t.Date.IsZero() {
		d.Date = t.Date.UTC().Format(time.RFC3339Nano)
	}
	for i, r := range t.Rounds {
		rd := roundDoc{Index: i + 1, Matches: make([]matchDoc, len(r.Matches))}
		for j, m := range r.Matches {
			rd.Matches[j] = matchDoc{Index: j + 1, Label: m.Label, Result: m.Result}
		}
		d.Pairings[i] = rd
	}
	return d
}

// fromDocument converts a stored document. name is the storage key and wins
// over any name recorded inside the file. A date that cannot be parsed is
// returned as dateErr with a zero Date so season ordering puts it last.
func fromDocument(name string, d document) (t *bracket.Tournament, dateErr error) {
	t = &bracket.Tournament{
		Name:     name,
		Title:    d.Title,
		Category: d.Category,
		Message: bracket.MessageRef{
			GuildID:    d.MessageInfo.GuildID,
			CategoryID: d.MessageInfo.CategoryID,
			ChannelID:  d.MessageInfo.ChannelID,
			MessageID:  d.MessageInfo.MessageID,
		},
		Revision: d.Revision,
	}
	rounds := append([]roundDoc(nil), d.Pairings...)
	sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Index < rounds[j].Index })
	t.Rounds = make([]bracket.Round, len(rounds))
	for i, r := range rounds {
		matches := append([]matchDoc(nil), r.Matches...)
		sort.SliceStable(matches, func(a, b int) bool { return matches[a].Index < matches[b].Index })
		br := bracket.Round{Index: i + 1, Matches: make([]bracket.Match, len(matches))}
		for j, m := range matches {
			br.Matches[j] = bracket.Match{Label: m.Label, Result: m.Result}
		}
		t.Rounds[i] = br
	}
	if d.Date != "" {
		date, err := parseDate(d.Date)
		if err != nil {
			return t, err
		}
		t.Date = date
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
}
