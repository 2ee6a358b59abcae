// Package category holds the single table of travel categories shared by
// the upload and e-mail paths, and routes inbound identifiers to it.
package category

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

type Category string

const (
	Flight        Category = "flight"
	Accommodation Category = "accommodation"
	Event         Category = "event"
	Transport     Category = "transport"
	Cruise        Category = "cruise"

	// Unknown is reported when the model cannot infer a category.
	Unknown Category = "unknown"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrMissingCategory = errors.New("category is required")
)

// Definition describes one category: how it is addressed, where its
// records are stored, and which fields it expects.
type Definition struct {
	Category    Category
	Token       string
	Table       string
	Description string
	fields      []string
}

// Fields returns the ordered field schema. The slice is a copy.
func (d Definition) Fields() []string {
	out := make([]string, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d Definition) NumFields() int { return len(d.fields) }

var definitions = []Definition{
	{
		Category:    Flight,
		Token:       "flights",
		Table:       "flights",
		Description: "airline flight booking or e-ticket",
		fields: []string{
			"Airline",
			"Flight number",
			"Departure city",
			"Departure airport",
			"Departure date",
			"Departure time",
			"Arrival city",
			"Arrival airport",
			"Arrival date",
			"Arrival time",
			"Passenger name",
			"Booking reference",
			"Seat",
			"Class",
		},
	},
	{
		Category:    Accommodation,
		Token:       "accommodation",
		Table:       "accommodations",
		Description: "hotel, rental or other lodging reservation",
		fields: []string{
			"Property name",
			"Address",
			"City",
			"Check-in date",
			"Check-in time",
			"Check-out date",
			"Check-out time",
			"Room type",
			"Number of guests",
			"Guest name",
			"Confirmation number",
			"Total price",
		},
	},
	{
		Category:    Event,
		Token:       "event",
		Table:       "events",
		Description: "ticket or reservation for a show, tour, match or other event",
		fields: []string{
			"Event name",
			"Venue",
			"Address",
			"City",
			"Date",
			"Start time",
			"End time",
			"Ticket type",
			"Number of tickets",
			"Confirmation number",
			"Total price",
		},
	},
	{
		Category:    Transport,
		Token:       "transport",
		Table:       "transports",
		Description: "ground or water transport such as trains, buses, ferries, transfers and car rentals",
		fields: []string{
			"Provider",
			"Transport type",
			"Pickup location",
			"Pickup date",
			"Pickup time",
			"Dropoff location",
			"Dropoff date",
			"Dropoff time",
			"Passenger name",
			"Confirmation number",
			"Total price",
		},
	},
	{
		Category:    Cruise,
		Token:       "cruise",
		Table:       "cruises",
		Description: "cruise booking",
		fields: []string{
			"Cruise line",
			"Ship name",
			"Departure port",
			"Departure date",
			"Arrival port",
			"Return date",
			"Cabin type",
			"Cabin number",
			"Passenger names",
			"Booking reference",
			"Total price",
		},
	},
}

// All returns the five definitions in table order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Names returns the category names in table order.
func Names() []string {
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = string(d.Category)
	}
	return names
}

// Lookup finds the definition for a category name.
func Lookup(c Category) (Definition, bool) {
	for _, d := range definitions {
		if d.Category == c {
			return d, true
		}
	}
	return Definition{}, false
}

// resolve matches a token or category name exactly.
func resolve(value string) (Definition, bool) {
	for _, d := range definitions {
		if value == d.Token || value == string(d.Category) {
			return d, true
		}
	}
	return Definition{}, false
}

// FromForm validates a category selected on the upload form.
func FromForm(value string) (Definition, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Definition{}, ErrMissingCategory
	}
	d, ok := resolve(value)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
	return d, nil
}

// FromAddress routes an inbound e-mail by the local part of its
// destination address: the text before the first '.' or '@'. Matching is
// case-sensitive.
func FromAddress(address string) (Definition, error) {
	local := LocalPart(address)
	if local == "" {
		return Definition{}, ErrMissingCategory
	}
	d, ok := resolve(local)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownCategory, local)
	}
	return d, nil
}

// LocalPart returns the routing prefix of an address such as
// "Bookings <flights.agency@inbound.example.com>" -> "flights".
func LocalPart(address string) string {
	address = strings.TrimSpace(address)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}
	if i := strings.IndexAny(address, ".@"); i >= 0 {
		address = address[:i]
	}
	return address
}
