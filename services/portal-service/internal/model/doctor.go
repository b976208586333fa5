package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type Doctor struct {
	ID         string  `json:"_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email,omitempty"`
	Image      string  `json:"image"`
	Speciality string  `json:"speciality"`
	Degree     string  `json:"degree"`
	Experience Years   `json:"experience"`
	About      string  `json:"about"`
	Available  bool    `json:"available"`
	Verified   bool    `json:"verified"`
	Fees       float64 `json:"fees"`
	Address    Address `json:"address"`
}

// Years is a non-negative count of years. The backend sends either 4 or "4 Years".
type Years int

func (y *Years) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return y.parse(s)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("experience: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("experience: negative value %v", f)
	}
	*y = Years(f)
	return nil
}

func (y *Years) parse(s string) error {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(s)
	}
	if end == 0 {
		if s == "" {
			*y = 0
			return nil
		}
		return fmt.Errorf("experience: no leading number in %q", s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return fmt.Errorf("experience: %w", err)
	}
	*y = Years(n)
	return nil
}

func (y Years) String() string {
	if y == 1 {
		return "1 year"
	}
	return strconv.Itoa(int(y)) + " years"
}
