package predictor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ethpandaops/laptime/pkg/features"
)

// ErrInsufficientGroups is returned when the holdout would leave no training event
var ErrInsufficientGroups = errors.New("not enough events to split into train and test")

// split holds the row indices of each partition and the events they cover
type split struct {
	train       []int
	test        []int
	trainEvents []string
	testEvents  []string
}

// splitByEvent shuffles the distinct events with a seeded source and holds
// out the first ceil(testSize*n) of them. No event spans both partitions.
func splitByEvent(rows []features.Row, testSize float64, seed int64) (*split, error) {
	seen := make(map[string]bool)
	events := make([]string, 0)

	for i := range rows {
		if !seen[rows[i].Event] {
			seen[rows[i].Event] = true
			events = append(events, rows[i].Event)
		}
	}

	sort.Strings(events)

	nTest := int(math.Ceil(testSize * float64(len(events))))
	if nTest < 1 {
		nTest = 1
	}

	if nTest >= len(events) {
		return nil, fmt.Errorf("%w: %d events, %d held out", ErrInsufficientGroups, len(events), nTest)
	}

	//nolint:gosec // reproducible shuffling, not security sensitive
	perm := rand.New(rand.NewSource(seed)).Perm(len(events))

	held := make(map[string]bool, nTest)
	for _, p := range perm[:nTest] {
		held[events[p]] = true
	}

	s := &split{}

	for _, e := range events {
		if held[e] {
			s.testEvents = append(s.testEvents, e)
		} else {
			s.trainEvents = append(s.trainEvents, e)
		}
	}

	for i := range rows {
		if held[rows[i].Event] {
			s.test = append(s.test, i)
		} else {
			s.train = append(s.train, i)
		}
	}

	return s, nil
}
