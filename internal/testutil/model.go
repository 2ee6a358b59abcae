package testutil

import (
	"context"
	"sync"
)

// FakeModel returns a canned reply and records every prompt it receives.
type FakeModel struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

func (m *FakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

func (m *FakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *FakeModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// FlightReply is a typical reply for a flight booking: prose around a
// fenced JSON object.
const FlightReply = "Here is the extracted booking:\n```json\n" + `{
  "documentType": "flight",
  "Airline": "United Airlines",
  "Flight number": "UA456",
  "Departure city": "San Francisco",
  "Departure airport": "SFO",
  "Departure date": "2024-03-15",
  "Departure time": "10:30",
  "Arrival city": "New York",
  "Arrival airport": "JFK",
  "Arrival date": "2024-03-15",
  "Arrival time": "19:15",
  "Passenger name": null,
  "Booking reference": null,
  "Seat": null,
  "Class": null
}` + "\n```\nLet me know if you need anything else."
