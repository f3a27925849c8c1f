// Package cities holds the closed table of locations the availability
// lookup understands. The table is fixed at process start and never mutated.
package cities

import "errors"

var ErrUnknownCity = errors.New("unknown city")

// City pairs a display name with the lookup code the external
// availability API expects. Codes are opaque: they only mean something
// to the remote side.
type City struct {
	Name string
	Code int
}

type Directory struct {
	table []City
}

// NewDirectory returns the directory with the default city table.
// Order matters: choice keyboards are built in declaration order.
func NewDirectory() *Directory {
	return &Directory{table: []City{
		{Name: "ملایر", Code: 75370000},
		{Name: "تهران", Code: 11320000},
		{Name: "همدان", Code: 75310000},
		{Name: "اصفهان", Code: 21310000},
		{Name: "عسلویه", Code: 95410000},
		{Name: "کرمانشاه", Code: 71310000},
		{Name: "شیراز", Code: 41310000},
		{Name: "رشت", Code: 54310000},
		{Name: "تبریز", Code: 26310000},
		{Name: "اهواز", Code: 36310000},
		{Name: "مشهد", Code: 31310000},
		{Name: "یزد", Code: 93310000},
	}}
}

// Resolve maps a display name to its lookup code.
func (d *Directory) Resolve(name string) (int, error) {
	for _, c := range d.table {
		if c.Name == name {
			return c.Code, nil
		}
	}
	return 0, ErrUnknownCity
}

// Names returns all display names in table order.
func (d *Directory) Names() []string {
	out := make([]string, 0, len(d.table))
	for _, c := range d.table {
		out = append(out, c.Name)
	}
	return out
}

// ListExcluding returns all display names except the given one, in table
// order. If the name is not in the table, the full list is returned.
func (d *Directory) ListExcluding(name string) []string {
	out := make([]string, 0, len(d.table))
	for _, c := range d.table {
		if c.Name == name {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// Len reports the number of known cities.
func (d *Directory) Len() int { return len(d.table) }
