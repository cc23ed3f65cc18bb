package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RRFSuite struct {
	suite.Suite
}

func TestRRFSuite(t *testing.T) {
	suite.Run(t, new(RRFSuite))
}

func contribution(rank int) float64 {
	return 1.0 / (60.0 + float64(rank) + 1.0)
}

func (s *RRFSuite) TestRRF_EmptyInput_ReturnsEmptyResult() {
	assert.Empty(s.T(), RRF())
	assert.Empty(s.T(), RRF(nil, nil))
}

func (s *RRFSuite) TestRRF_SingleList_PreservesOrder() {
	result := RRF([]ScoredID{
		{DocType: DocObservation, ID: 1},
		{DocType: DocObservation, ID: 2},
		{DocType: DocObservation, ID: 3},
	})
	s.Require().Len(result, 3)
	s.Equal(int64(1), result[0].ID)
	s.Equal(int64(3), result[2].ID)
	s.InDelta(contribution(0), result[0].Score, 1e-12)
	s.InDelta(contribution(2), result[2].Score, 1e-12)
}

func (s *RRFSuite) TestRRF_SharedHitAccumulates() {
	result := RRF(
		[]ScoredID{{DocType: DocObservation, ID: 1}, {DocType: DocObservation, ID: 2}},
		[]ScoredID{{DocType: DocObservation, ID: 2}},
	)
	s.Require().Len(result, 2)
	s.Equal(int64(2), result[0].ID)
	s.InDelta(contribution(1)+contribution(0), result[0].Score, 1e-12)
}

func (s *RRFSuite) TestRRF_SameIDDifferentDocTypeKeptApart() {
	result := RRF(
		[]ScoredID{{DocType: DocObservation, ID: 5}},
		[]ScoredID{{DocType: DocSummary, ID: 5}},
	)
	s.Require().Len(result, 2)
	s.Equal(DocObservation, result[0].DocType)
	s.Equal(DocSummary, result[1].DocType)
}
