// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type validationTestSuite struct {
	suite.Suite
}

// In order for 'go test' to run this suite, we need to create
// a normal test function and pass our suite to suite.Run
func TestValidation(t *testing.T) {
	suite.Run(t, new(validationTestSuite))
}

func (s *validationTestSuite) TestNewChain() {
	s.Run("new chain without option", func() {
		chain := New()
		s.Assert().NotNil(chain)
		s.Assert().False(chain.failFast)
	})
	s.Run("new chain with options", func() {
		s.Assert().True(New(FailFast()).failFast)
		s.Assert().False(New(AllErrors()).failFast)
	})
}

func (s *validationTestSuite) TestValidate() {
	s.Run("with single validator", func() {
		err := New().AddValidator(NewEmptyStringValidator("field", " ")).Validate()
		s.Assert().EqualError(err, "the [field] is required")
	})
	s.Run("with FailFast option", func() {
		chain := New(FailFast()).
			AddValidator(NewEmptyStringValidator("field", "")).
			AddAssertion(false, "this is false")
		err := chain.Validate()
		s.Assert().EqualError(err, "the [field] is required")
		s.Assert().Nil(chain.violations)
	})
	s.Run("with AllErrors option", func() {
		err := New(AllErrors()).
			AddValidator(NewEmptyStringValidator("field", "")).
			AddAssertion(false, "this is false").
			Validate()
		s.Assert().EqualError(err, "the [field] is required; this is false")
	})
	s.Run("with no violation", func() {
		err := New().
			AddValidator(NewEmptyStringValidator("field", "value")).
			AddAssertion(true, "never").
			Validate()
		s.Assert().NoError(err)
	})
}

func (s *validationTestSuite) TestSegmentValidator() {
	s.Assert().NoError(NewSegmentValidator("tenant", "default").Validate())
	s.Assert().NoError(NewSegmentValidator("application", "music.v2_prod-1").Validate())
	s.Assert().Error(NewSegmentValidator("tenant", "").Validate())
	s.Assert().Error(NewSegmentValidator("tenant", "a/b").Validate())
	s.Assert().Error(NewSegmentValidator("tenant", "a:b").Validate())
	s.Assert().Error(NewSegmentValidator("tenant", "-leading").Validate())
}

func (s *validationTestSuite) TestPositiveDurationValidator() {
	s.Assert().NoError(NewPositiveDurationValidator("interval", time.Second).Validate())
	s.Assert().EqualError(NewPositiveDurationValidator("interval", 0).Validate(), "the [interval] must be positive, but was 0s")
	s.Assert().Error(NewPositiveDurationValidator("interval", -time.Second).Validate())
}

func (s *validationTestSuite) TestTCPAddressValidator() {
	s.Assert().NoError(NewTCPAddressValidator("127.0.0.1:19071").Validate())
	s.Assert().NoError(NewTCPAddressValidator("cfg1.example.com:19071").Validate())
	s.Assert().Error(NewTCPAddressValidator("127.0.0.1").Validate())
	s.Assert().Error(NewTCPAddressValidator(":19071").Validate())
	s.Assert().Error(NewTCPAddressValidator("127.0.0.1:port").Validate())
	s.Assert().Error(NewTCPAddressValidator("127.0.0.1:70000").Validate())
}

func (s *validationTestSuite) TestBooleanValidator() {
	s.Assert().NoError(NewBooleanValidator(true, "error message").Validate())
	s.Assert().EqualError(NewBooleanValidator(false, "error message").Validate(), "error message")
}
