// Package dice parses and evaluates dice notation such as "1d20+2d4-1".
package dice

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
)

const (
	// MaxDicePerTerm caps the count of a single dice term (100d6 is fine).
	MaxDicePerTerm = 100
	// MaxFaces caps the faces of a single die.
	MaxFaces = 1000
	// MaxTerms caps the number of signed terms in one expression.
	MaxTerms = 20
	// MaxModifier caps the absolute value of a number term. With the other
	// limits it keeps every total well inside int range.
	MaxModifier = 1_000_000
)

var (
	// ErrInvalidRoll indicates the expression does not follow the notation.
	ErrInvalidRoll = apperrors.New(apperrors.CodeDiceInvalidRoll, "dice roll syntax is incorrect")
	// ErrRollTooLarge indicates the expression exceeds the safety limits.
	ErrRollTooLarge = apperrors.New(apperrors.CodeDiceRollTooLarge, "dice roll is too large")
)

var (
	rollPattern = regexp.MustCompile(`^((\d+|\d*[dD]\d+)([-+](\d+|\d*[dD]\d+))*)$`)
	termPattern = regexp.MustCompile(`[-+]?(\d*[dD]\d+|\d+)`)
)

// Kind tells dice terms from flat numbers.
type Kind int

const (
	// KindNumber is a flat modifier such as "+2".
	KindNumber Kind = iota
	// KindDice is a dice term such as "2d6".
	KindDice
)

// Term is one signed component of an expression, in input order.
type Term struct {
	// Text is the term as typed, sign included ("+2d4", "-1", "d20").
	Text  string
	Sign  int
	Kind  Kind
	Count int
	Faces int
	// Rolls holds one value per die, or the absolute number for KindNumber.
	Rolls []int
}

// Value returns the signed contribution of the term to the total.
func (t Term) Value() int {
	sum := 0
	for _, v := range t.Rolls {
		sum += v
	}
	return t.Sign * sum
}

// Roll is an evaluated expression.
type Roll struct {
	Expression string
	Total      int
	Terms      []Term
}

// Rolls maps each term text to its rolled values. Terms typed twice share
// one key and their values are concatenated.
func (r Roll) Rolls() map[string][]int {
	out := make(map[string][]int, len(r.Terms))
	for _, term := range r.Terms {
		out[term.Text] = append(out[term.Text], term.Rolls...)
	}
	return out
}

// Footer renders the per-term trace, e.g. "d20: [15], +2d4: [1, 3]".
func (r Roll) Footer() string {
	parts := make([]string, 0, len(r.Terms))
	for _, term := range r.Terms {
		values := make([]string, len(term.Rolls))
		for i, v := range term.Rolls {
			values[i] = strconv.Itoa(v)
		}
		parts = append(parts, fmt.Sprintf("%s: [%s]", term.Text, strings.Join(values, ", ")))
	}
	return strings.Join(parts, ", ")
}

// Roller evaluates expressions with a seeded PRNG. It is not safe for
// concurrent use; create one per request.
type Roller struct {
	rng    *rand.Rand
	prefix string
}

// NewRoller returns a roller seeded with seed.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// WithCommandPrefix strips a leading "<prefix>roll" before parsing, so raw
// bot messages can be evaluated directly.
func (r *Roller) WithCommandPrefix(prefix string) *Roller {
	r.prefix = prefix
	return r
}

// Roll parses and evaluates expression.
func (r *Roller) Roll(expression string) (Roll, error) {
	terms, normalized, err := Parse(expression, r.prefix)
	if err != nil {
		return Roll{}, err
	}

	result := Roll{Expression: normalized, Terms: terms}
	for i := range result.Terms {
		term := &result.Terms[i]
		if term.Kind == KindDice {
			term.Rolls = make([]int, term.Count)
			for n := range term.Rolls {
				term.Rolls[n] = r.rng.Intn(term.Faces) + 1
			}
		}
		result.Total += term.Value()
	}
	return result, nil
}

// Parse validates expression and splits it into unrolled terms. Number terms
// already carry their value. The returned string is the expression without
// the command prefix.
func Parse(expression string, commandPrefix string) ([]Term, string, error) {
	expression = strings.TrimSpace(expression)
	if commandPrefix != "" {
		if rest, ok := strings.CutPrefix(expression, commandPrefix+"roll"); ok {
			expression = strings.TrimSpace(rest)
		}
	}
	if !rollPattern.MatchString(expression) {
		return nil, expression, invalid(expression)
	}

	matches := termPattern.FindAllString(expression, -1)
	if len(matches) > MaxTerms {
		return nil, expression, tooLarge(expression)
	}

	terms := make([]Term, 0, len(matches))
	for _, text := range matches {
		term := Term{Text: text, Sign: 1}
		body := text
		switch body[0] {
		case '-':
			term.Sign = -1
			body = body[1:]
		case '+':
			body = body[1:]
		}

		if countText, facesText, isDice := strings.Cut(strings.ToLower(body), "d"); isDice {
			term.Kind = KindDice
			term.Count = 1
			if countText != "" {
				count, err := strconv.Atoi(countText)
				if err != nil {
					return nil, expression, tooLarge(expression)
				}
				term.Count = count
			}
			faces, err := strconv.Atoi(facesText)
			if err != nil {
				return nil, expression, tooLarge(expression)
			}
			term.Faces = faces
			if term.Count < 1 || term.Faces < 1 {
				return nil, expression, invalid(expression)
			}
			if term.Count > MaxDicePerTerm || term.Faces > MaxFaces {
				return nil, expression, tooLarge(expression)
			}
		} else {
			value, err := strconv.Atoi(body)
			if err != nil || value > MaxModifier {
				return nil, expression, tooLarge(expression)
			}
			term.Kind = KindNumber
			term.Rolls = []int{value}
		}
		terms = append(terms, term)
	}
	return terms, expression, nil
}

func invalid(expression string) error {
	return apperrors.WithMetadata(apperrors.CodeDiceInvalidRoll,
		fmt.Sprintf("dice roll %q syntax is incorrect", expression),
		map[string]string{"Roll": expression})
}

func tooLarge(expression string) error {
	return apperrors.WithMetadata(apperrors.CodeDiceRollTooLarge,
		fmt.Sprintf("dice roll %q is too large", expression),
		map[string]string{"Roll": expression})
}
