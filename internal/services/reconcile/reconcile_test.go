package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/domain"
)

type fakeExtractor struct {
	fields domain.VehicleFields
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(context.Context, domain.Document) (domain.VehicleFields, error) {
	f.calls++
	return f.fields, f.err
}

type fakePolicy struct {
	decisions domain.Decisions
	err       error
	gotCands  domain.VehicleFields
	gotCurr   domain.VehicleFields
}

func (f *fakePolicy) Decide(_ context.Context, cands, curr domain.VehicleFields) (domain.Decisions, error) {
	f.gotCands, f.gotCurr = cands, curr
	return f.decisions, f.err
}

func approveOnly(f domain.Field) domain.Decisions {
	var d domain.Decisions
	switch f {
	case domain.FieldChassisNumber:
		d.ChassisNumber = true
	case domain.FieldBrand:
		d.Brand = true
	case domain.FieldType:
		d.Type = true
	case domain.FieldTradeName:
		d.TradeName = true
	case domain.FieldOwner:
		d.Owner = true
	case domain.FieldTypeApprovalNumber:
		d.TypeApprovalNumber = true
	case domain.FieldTypeAndVariant:
		d.TypeAndVariant = true
	}
	return d
}

func doc(source domain.DocumentSource) domain.Document {
	return domain.Document{Source: source, Name: "scan.jpg", MIMEType: "image/jpeg", Data: []byte("img")}
}

func TestApplyFieldProperties(t *testing.T) {
	current := domain.VehicleFields{
		ChassisNumber: "CUR-CH", Brand: "CUR-B", Type: "CUR-T", TradeName: "CUR-TN",
		Owner: "CUR-O", TypeApprovalNumber: "CUR-TA", TypeAndVariant: "CUR-TV",
	}
	for _, source := range []domain.DocumentSource{domain.SourceRegistration, domain.SourceLabel} {
		for _, f := range domain.VehicleFieldOrder {
			for _, approved := range []bool{true, false} {
				for _, cand := range []string{"", "  ", "NEW"} {
					candidate := domain.VehicleFields{}.Set(f, cand)
					var decisions domain.Decisions
					if approved {
						decisions = approveOnly(f)
					}
					out := Apply(current, candidate, decisions, source, FieldsFor(source))

					expectChange := approved && cand == "NEW" && Writable(f, source)
					if expectChange {
						assert.Equal(t, "NEW", out.Get(f), "%s/%s", source, f)
					} else {
						assert.Equal(t, current.Get(f), out.Get(f), "%s/%s approved=%v cand=%q", source, f, approved, cand)
					}
					for _, other := range domain.VehicleFieldOrder {
						if other != f {
							assert.Equal(t, current.Get(other), out.Get(other))
						}
					}
				}
			}
		}
	}
}

func TestWritable(t *testing.T) {
	assert.True(t, Writable(domain.FieldChassisNumber, domain.SourceRegistration))
	assert.False(t, Writable(domain.FieldChassisNumber, domain.SourceLabel))
	assert.True(t, Writable(domain.FieldBrand, domain.SourceLabel))
}

func TestRunEmptyChassisIsFilled(t *testing.T) {
	ex := &fakeExtractor{fields: domain.VehicleFields{ChassisNumber: "CH1"}}
	pol := &fakePolicy{decisions: domain.Decisions{ChassisNumber: true}}
	res, err := New(ex, pol, nil).Run(context.Background(), doc(domain.SourceRegistration), domain.VehicleFields{})
	require.NoError(t, err)
	assert.Equal(t, "CH1", res.Fields.ChassisNumber)
	assert.Equal(t, []domain.Field{domain.FieldChassisNumber}, res.Changed)
}

func TestRunRejectedDecisionKeepsValue(t *testing.T) {
	ex := &fakeExtractor{fields: domain.VehicleFields{Brand: "X"}}
	pol := &fakePolicy{decisions: domain.Decisions{Brand: false}}
	res, err := New(ex, pol, nil).Run(context.Background(), doc(domain.SourceRegistration), domain.VehicleFields{Brand: "Y"})
	require.NoError(t, err)
	assert.Equal(t, "Y", res.Fields.Brand)
	assert.Empty(t, res.Changed)
}

func TestRunLabelCannotReplaceChassis(t *testing.T) {
	ex := &fakeExtractor{fields: domain.VehicleFields{ChassisNumber: "CH2", Brand: "Scania"}}
	pol := &fakePolicy{decisions: domain.Decisions{ChassisNumber: true, Brand: true}}
	res, err := New(ex, pol, nil).Run(context.Background(), doc(domain.SourceLabel), domain.VehicleFields{ChassisNumber: "CH1"})
	require.NoError(t, err)
	assert.Equal(t, "CH1", res.Fields.ChassisNumber)
	assert.Equal(t, "Scania", res.Fields.Brand)
}

func TestRunPassesCurrentsToPolicy(t *testing.T) {
	ex := &fakeExtractor{fields: domain.VehicleFields{Owner: "  Bakker  "}}
	pol := &fakePolicy{}
	current := domain.VehicleFields{Owner: "Smit"}
	_, err := New(ex, pol, nil).Run(context.Background(), doc(domain.SourceRegistration), current)
	require.NoError(t, err)
	assert.Equal(t, current, pol.gotCurr)
	assert.Equal(t, "Bakker", pol.gotCands.Owner)
}

func TestRunExtractionFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", domain.ErrServiceUnavailable, domain.ErrServiceUnavailable},
		{"generic", errors.New("malformed response"), domain.ErrScanFailed},
		{"deadline", context.DeadlineExceeded, domain.ErrServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExtractor{err: tc.err}
			res, err := New(ex, &fakePolicy{}, nil).Run(context.Background(), doc(domain.SourceRegistration), domain.VehicleFields{Brand: "Y"})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, Result{}, res)
		})
	}
}

func TestRunPolicyFailureAppliesNothing(t *testing.T) {
	ex := &fakeExtractor{fields: domain.VehicleFields{Brand: "X", Owner: "Z"}}
	pol := &fakePolicy{decisions: domain.Decisions{Brand: true, Owner: true}, err: errors.New("policy exploded")}
	res, err := New(ex, pol, nil).Run(context.Background(), doc(domain.SourceRegistration), domain.VehicleFields{})
	assert.ErrorIs(t, err, domain.ErrScanFailed)
	assert.Equal(t, Result{}, res)
}

func TestRunEmptyDocumentNeverCallsService(t *testing.T) {
	ex := &fakeExtractor{}
	d := doc(domain.SourceRegistration)
	d.Data = nil
	_, err := New(ex, &fakePolicy{}, nil).Run(context.Background(), d, domain.VehicleFields{})
	assert.ErrorIs(t, err, domain.ErrFileUnreadable)
	assert.Zero(t, ex.calls)
}
