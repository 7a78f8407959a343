package quiz

import (
	"errors"
	"strings"
)

// Letter is a multiple-choice option, one of A, B, C or D.
type Letter byte

const (
	LetterA Letter = 'A'
	LetterB Letter = 'B'
	LetterC Letter = 'C'
	LetterD Letter = 'D'
)

// Unanswered marks a question with no selection in answer records.
const Unanswered = "-"

var ErrInvalidLetter = errors.New("option must be one of A, B, C, D")

var Letters = [4]Letter{LetterA, LetterB, LetterC, LetterD}

func (l Letter) Valid() bool { return l >= LetterA && l <= LetterD }

// Index is the zero-based option position.
func (l Letter) Index() int { return int(l - LetterA) }

func (l Letter) String() string {
	if !l.Valid() {
		return Unanswered
	}
	return string(rune(l))
}

// ParseLetter accepts a single letter, case-insensitive, surrounding space ignored.
func ParseLetter(s string) (Letter, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 {
		return 0, ErrInvalidLetter
	}
	l := Letter(s[0])
	if !l.Valid() {
		return 0, ErrInvalidLetter
	}
	return l, nil
}

func (l Letter) MarshalText() ([]byte, error) {
	if l == 0 {
		return []byte{}, nil
	}
	if !l.Valid() {
		return nil, ErrInvalidLetter
	}
	return []byte{byte(l)}, nil
}

func (l *Letter) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*l = 0
		return nil
	}
	v, err := ParseLetter(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
