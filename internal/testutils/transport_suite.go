package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// MockTransportSuite is a reusable testify suite with a mocked transport.
//
// Basic usage (default: no advertisements, no peripherals):
//
//	type SimpleSuite struct {
//	    testutils.MockTransportSuite
//	}
//
// Custom peripherals are configured before calling the parent SetupTest:
//
//	func (s *ConnectSuite) SetupTest() {
//	    s.WithTransport().
//	        WithAdvertisements(testutils.FzoneAdvertisement("fzone-01", "AA:01")).
//	        WithPeripheral("AA:01").WithNotifying(false)
//
//	    s.MockTransportSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockTransportSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	TestTimeout time.Duration

	Builder   *TransportBuilder
	Transport *MockTransport
}

// SetupSuite initializes the helper and logger once for all tests.
func (s *MockTransportSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 2 * time.Second
}

// SetupTest builds the transport from the configured builder.
func (s *MockTransportSuite) SetupTest() {
	if s.Builder == nil {
		s.Builder = NewTransportBuilder()
	}
	s.Transport = s.Builder.Build()
	s.Logger.Debug("Test setup completed - ready for execution")
}

// TearDownTest drops the per-test configuration.
func (s *MockTransportSuite) TearDownTest() {
	if s.Transport != nil {
		s.Transport.CloseEvents()
	}
	s.Builder = nil
	s.Transport = nil
}

// WithTransport returns the builder used by the next SetupTest
func (s *MockTransportSuite) WithTransport() *TransportBuilder {
	if s.Builder == nil {
		s.Builder = NewTransportBuilder()
	}
	return s.Builder
}

// WaitUntil waits for cond within TestTimeout
func (s *MockTransportSuite) WaitUntil(cond func() bool, msgAndArgs ...interface{}) bool {
	return s.Suite.Eventually(cond, s.TestTimeout, time.Millisecond, msgAndArgs...)
}
