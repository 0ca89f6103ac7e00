package bidding

import (
	"context"
	"strconv"

	"github.com/abrezinsky/autobid/internal/models"
)

type call struct {
	op     string
	handle models.SlotHandle
}

// fakePortal is a scripted portal. Sequences are consumed one per call and
// the last entry repeats.
type fakePortal struct {
	snapshots   [][]models.SlotRow
	fetchErrs   []error
	replies     []string
	submitErrs  []error
	selectErrs  map[models.SlotHandle]error
	deselectErr error
	alive       []bool
	aliveErr    error
	loginErrs   []error
	onSelect    func(models.SlotHandle)

	calls       []call
	submissions [][]models.SlotHandle
	fetches     int
	resets      int
	logins      int
	aliveChecks int
}

func next[T any](seq []T, i int) (T, bool) {
	var zero T
	if len(seq) == 0 {
		return zero, false
	}
	if i >= len(seq) {
		return seq[len(seq)-1], true
	}
	return seq[i], true
}

func (f *fakePortal) FetchSlots(ctx context.Context, code string) ([]models.SlotRow, error) {
	i := f.fetches
	f.fetches++
	if err, ok := next(f.fetchErrs, i); ok && err != nil {
		return nil, err
	}
	rows, _ := next(f.snapshots, i)
	return rows, nil
}

func (f *fakePortal) Select(ctx context.Context, h models.SlotHandle) error {
	f.calls = append(f.calls, call{"select", h})
	if err := f.selectErrs[h]; err != nil {
		return err
	}
	if f.onSelect != nil {
		f.onSelect(h)
	}
	return nil
}

func (f *fakePortal) Deselect(ctx context.Context, h models.SlotHandle) error {
	f.calls = append(f.calls, call{"deselect", h})
	return f.deselectErr
}

func (f *fakePortal) SubmitSelection(ctx context.Context, handles []models.SlotHandle) (string, error) {
	i := len(f.submissions)
	f.submissions = append(f.submissions, handles)
	if err, ok := next(f.submitErrs, i); ok && err != nil {
		return "", err
	}
	reply, _ := next(f.replies, i)
	return reply, nil
}

func (f *fakePortal) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakePortal) SessionAlive(ctx context.Context) (bool, error) {
	i := f.aliveChecks
	f.aliveChecks++
	if f.aliveErr != nil {
		return false, f.aliveErr
	}
	alive, ok := next(f.alive, i)
	if !ok {
		return true, nil
	}
	return alive, nil
}

func (f *fakePortal) Login(ctx context.Context, studentID, password string) error {
	i := f.logins
	f.logins++
	err, _ := next(f.loginErrs, i)
	return err
}

func (f *fakePortal) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func row(t models.ClassType, slot int, selectable bool) models.SlotRow {
	return models.SlotRow{
		ClassType:  t,
		SlotNumber: slot,
		Selectable: selectable,
		Handle:     models.SlotHandle(string(t) + strconv.Itoa(slot)),
	}
}

func lectureCourse(slots ...int) models.CourseSpec {
	return models.CourseSpec{
		Code:  "CSC1001",
		Name:  "Programming Principles",
		Slots: map[models.ClassType]models.RankedSlots{models.Lecture: slots},
	}
}

var _ Client = (*fakePortal)(nil)
