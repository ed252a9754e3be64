// Package seed loads library stock fixtures from JSON and reshapes them into
// demo scenarios before they are written to the stock store.
package seed

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

var json = jsoniter.ConfigFastest

// Scenario names accepted by ApplyScenario.
const (
	ScenarioAsIs       = "as-is"
	ScenarioAllToFirst = "all-to-first"
	ScenarioRandom     = "random"
)

var (
	// ErrReadingFixtureFailed occurs when the fixture file cannot be read.
	ErrReadingFixtureFailed = errors.New("failed to read fixture file")

	// ErrParsingFixtureFailed occurs when the fixture file is not valid JSON.
	ErrParsingFixtureFailed = errors.New("failed to parse fixture file")

	// ErrEmptyFixture occurs when the fixture contains no libraries.
	ErrEmptyFixture = errors.New("fixture contains no libraries")

	// ErrUnknownScenario occurs when an unsupported scenario name is supplied.
	ErrUnknownScenario = errors.New("unknown seed scenario")

	// ErrFixtureOverCapacity occurs when a scenario cannot place all fixture
	// books within the combined capacity.
	ErrFixtureOverCapacity = errors.New("fixture book count exceeds total capacity")
)

// libraryFixture mirrors one library entry in a fixture file.
type libraryFixture struct {
	ID           string `json:"id"`
	CurrentCount int    `json:"current_count"`
	Capacity     int    `json:"capacity"`
}

// fixtureFile mirrors the top-level fixture document.
type fixtureFile struct {
	Libraries []libraryFixture `json:"libraries"`
}

// LoadFixture reads and parses a fixture file into validated libraries.
func LoadFixture(path string) ([]rebalance.Library, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, errors.Join(ErrReadingFixtureFailed, readErr)
	}

	return ParseFixture(data)
}

// ParseFixture parses fixture JSON into validated libraries. Validation is
// the same as the planner's: every entry must build a valid library, and the
// whole set must form a valid snapshot (no duplicate identifiers).
func ParseFixture(data []byte) ([]rebalance.Library, error) {
	var fixture fixtureFile
	if unmarshalErr := json.Unmarshal(data, &fixture); unmarshalErr != nil {
		return nil, errors.Join(ErrParsingFixtureFailed, unmarshalErr)
	}

	if len(fixture.Libraries) == 0 {
		return nil, ErrEmptyFixture
	}

	libraries := make([]rebalance.Library, 0, len(fixture.Libraries))
	for _, entry := range fixture.Libraries {
		library, buildErr := rebalance.BuildLibrary(entry.ID, entry.CurrentCount, entry.Capacity)
		if buildErr != nil {
			return nil, buildErr
		}

		libraries = append(libraries, library)
	}

	snapshot, snapshotErr := rebalance.BuildSnapshot(libraries...)
	if snapshotErr != nil {
		return nil, snapshotErr
	}

	return snapshot.Libraries(), nil
}

// ApplyScenario redistributes the fixture's total book count according to the
// named scenario, keeping identifiers and capacities untouched:
//
//   - as-is: the fixture counts, unchanged
//   - all-to-first: every book piled into the lowest library identifiers,
//     spilling forward when a library is full (worst case for the planner)
//   - random: books spread randomly across libraries, reproducible via seed
func ApplyScenario(libraries []rebalance.Library, scenario string, rngSeed int64) ([]rebalance.Library, error) {
	if len(libraries) == 0 {
		return nil, ErrEmptyFixture
	}

	switch scenario {
	case ScenarioAsIs:
		return libraries, nil

	case ScenarioAllToFirst:
		return pileIntoFirst(libraries)

	case ScenarioRandom:
		return scatterRandomly(libraries, rand.New(rand.NewSource(rngSeed)))
	}

	return nil, errors.Join(ErrUnknownScenario, fmt.Errorf("scenario %q supplied", scenario))
}

// pileIntoFirst pours all books into libraries in ascending identifier order,
// filling each to capacity before spilling into the next.
func pileIntoFirst(libraries []rebalance.Library) ([]rebalance.Library, error) {
	remaining := totalBooks(libraries)
	reshaped := make([]rebalance.Library, len(libraries))

	for i, library := range libraries {
		amount := min(remaining, library.Capacity)
		reshaped[i] = rebalance.Library{ID: library.ID, CurrentCount: amount, Capacity: library.Capacity}
		remaining -= amount
	}

	if remaining > 0 {
		return nil, overCapacityError(remaining)
	}

	return reshaped, nil
}

// scatterRandomly spreads all books across libraries in a random but
// reproducible way. Each library except the last in visit order receives a
// random share of what remains; leftovers are poured greedily afterwards.
func scatterRandomly(libraries []rebalance.Library, rng *rand.Rand) ([]rebalance.Library, error) {
	remaining := totalBooks(libraries)
	reshaped := make([]rebalance.Library, len(libraries))

	order := rng.Perm(len(libraries))

	for _, idx := range order {
		library := libraries[idx]
		amount := rng.Intn(min(remaining, library.Capacity) + 1)
		reshaped[idx] = rebalance.Library{ID: library.ID, CurrentCount: amount, Capacity: library.Capacity}
		remaining -= amount
	}

	// a random split rarely lands exactly; pour the rest wherever slack is left
	for _, idx := range order {
		if remaining == 0 {
			break
		}

		slack := reshaped[idx].Capacity - reshaped[idx].CurrentCount
		amount := min(remaining, slack)
		reshaped[idx].CurrentCount += amount
		remaining -= amount
	}

	if remaining > 0 {
		return nil, overCapacityError(remaining)
	}

	return reshaped, nil
}

func totalBooks(libraries []rebalance.Library) int {
	total := 0
	for _, library := range libraries {
		total += library.CurrentCount
	}

	return total
}

func overCapacityError(remaining int) error {
	return errors.Join(
		ErrFixtureOverCapacity,
		fmt.Errorf("%d books left over after filling every library", remaining))
}
