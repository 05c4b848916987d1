// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/enrich-cli/pkg/google"
)

// MockClient is a testify mock of google.Client.
type MockClient struct {
	mock.Mock
}

var _ google.Client = (*MockClient)(nil)

// TextSearch returns the stubbed response for req.
func (m *MockClient) TextSearch(ctx context.Context, req google.TextSearchRequest) (*google.TextSearchResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*google.TextSearchResponse)
	return resp, args.Error(1)
}

// NewMockClient returns a MockClient whose expectations are asserted when
// the test ends.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
