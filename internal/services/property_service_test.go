package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/covenant/internal/models"
)

func TestCreateProperty_Success(t *testing.T) {
	f := newFixture(t)
	phone := "555-0100"

	p, err := f.properties.Create(context.Background(), CreatePropertyInput{
		Location:     &models.Location{Latitude: 30.3477, Longitude: -95.4502},
		OwnerPhone:   &phone,
		Address:      " 12 Elm St ",
		OwnerName:    "Jane Doe",
		OwnerEmail:   "jane@example.com",
		LandAreaSqft: 8500,
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "12 Elm St", p.Address)
	assert.Equal(t, models.Scores{ComplianceScore: 100, FinancialScore: 100, CombinedScore: 100}, p.Scores())
	assert.Equal(t, testNow, p.CreatedAt)

	stored := f.property(t, p.ID)
	assert.Equal(t, p.Location, stored.Location)
}

func TestCreateProperty_Validation(t *testing.T) {
	valid := CreatePropertyInput{
		Address:      "12 Elm St",
		OwnerName:    "Jane Doe",
		OwnerEmail:   "jane@example.com",
		LandAreaSqft: 1000,
	}

	tests := []struct {
		name   string
		mutate func(in *CreatePropertyInput)
	}{
		{"missing address", func(in *CreatePropertyInput) { in.Address = "" }},
		{"missing owner", func(in *CreatePropertyInput) { in.OwnerName = " " }},
		{"bad email", func(in *CreatePropertyInput) { in.OwnerEmail = "not-an-email" }},
		{"zero land area", func(in *CreatePropertyInput) { in.LandAreaSqft = 0 }},
		{"latitude out of range", func(in *CreatePropertyInput) {
			in.Location = &models.Location{Latitude: 91, Longitude: 0}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := valid
			tt.mutate(&in)

			p, err := f.properties.Create(context.Background(), in)

			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidProperty)
		})
	}
}

func TestGetProperty_WithViolations(t *testing.T) {
	f := newFixture(t)
	p := f.createProperty(t, "12 Elm St", 1000)
	f.createViolation(t, p.ID, models.SeverityLow)

	detail, err := f.properties.Get(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, p.ID, detail.ID)
	assert.Len(t, detail.Violations, 1)
	assert.Equal(t, 95, detail.ComplianceScore)

	_, err = f.properties.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestListProperties_LowestComplianceFirst(t *testing.T) {
	f := newFixture(t)
	clean := f.createProperty(t, "10 Elm St", 1000)
	worst := f.createProperty(t, "12 Elm St", 1000)
	f.createViolation(t, worst.ID, models.SeverityHigh)
	f.createViolation(t, worst.ID, models.SeverityLow)

	list, err := f.properties.List(context.Background())

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, worst.ID, list[0].ID)
	assert.Equal(t, 2, list[0].OpenViolations)
	assert.NotNil(t, list[0].LastActivity)
	assert.Equal(t, clean.ID, list[1].ID)
	assert.Equal(t, 0, list[1].OpenViolations)
	assert.Nil(t, list[1].LastActivity)
}

func TestDeleteProperty_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProperty(t, "12 Elm St", 1000)
	created := f.createViolation(t, p.ID, models.SeverityLow)

	require.NoError(t, f.properties.Delete(ctx, p.ID))

	_, err := f.properties.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPropertyNotFound)

	v, err := f.store.Violations.FindByID(ctx, created.Violation.ID)
	require.NoError(t, err)
	assert.Nil(t, v)

	b, err := f.store.Bills.FindByID(ctx, created.Bill.ID)
	require.NoError(t, err)
	assert.Nil(t, b)

	assert.ErrorIs(t, f.properties.Delete(ctx, p.ID), ErrPropertyNotFound)
}
