package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidObjectIDs(t *testing.T) {
	valid := primitive.NewObjectID()

	tests := []struct {
		name string
		ids  []string
		want []primitive.ObjectID
	}{
		{"all valid", []string{valid.Hex()}, []primitive.ObjectID{valid}},
		{"malformed dropped", []string{"r1", valid.Hex(), ""}, []primitive.ObjectID{valid}},
		{"none valid", []string{"r1", "r2"}, []primitive.ObjectID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validObjectIDs(tt.ids))
		})
	}
}

func TestObjectIDs_RejectsMalformed(t *testing.T) {
	_, err := objectIDs([]string{primitive.NewObjectID().Hex(), "r1"})
	assert.Error(t, err)
}
