package provision

import (
	"context"
	"sync"
	"testing"

	"github.com/FrontdeskLabs/reception-voice-service/internal/config"
	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/internal/telephony"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		PublicBaseURL:   "https://api.example.com",
		CountryCode:     "US",
		NumberSearchMin: 5,
		NumberSearchMax: 20,
	}
}

func newTestService() (*Service, *repository.MemoryBindingRepository, *telephony.StubProvider) {
	bindings := repository.NewMemoryBindingRepository()
	provider := telephony.NewStubProvider()
	svc := NewService(testConfig(), bindings, provider, nil)
	return svc, bindings, provider
}

func TestEnsureSubAccountCreatesOnce(t *testing.T) {
	svc, _, provider := newTestService()

	first, err := svc.EnsureSubAccount(context.Background(), "t1")
	require.NoError(t, err)
	second, err := svc.EnsureSubAccount(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.SubAccountsCreated)
}

func TestEnsureSubAccountConcurrentFirstUse(t *testing.T) {
	svc, _, provider := newTestService()

	const workers = 8
	sids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid, err := svc.EnsureSubAccount(context.Background(), "t1")
			assert.NoError(t, err)
			sids[i] = sid
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, provider.SubAccountsCreated)
	for _, sid := range sids {
		assert.Equal(t, sids[0], sid)
	}
}

func TestEnsureSubAccountPerTenantIsolation(t *testing.T) {
	svc, _, provider := newTestService()

	sid1, err := svc.EnsureSubAccount(context.Background(), "t1")
	require.NoError(t, err)
	sid2, err := svc.EnsureSubAccount(context.Background(), "t2")
	require.NoError(t, err)

	assert.NotEqual(t, sid1, sid2)
	assert.Equal(t, 2, provider.SubAccountsCreated)
}

func TestEnsureSubAccountRequiresTenant(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.EnsureSubAccount(context.Background(), "")
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestSearchNumbersValidatesAreaCode(t *testing.T) {
	svc, _, provider := newTestService()

	_, err := svc.SearchNumbers(context.Background(), "t1", "34", 10)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Empty(t, provider.SearchedAreaCodes)
}

func TestSearchNumbersClampsLimit(t *testing.T) {
	svc, _, provider := newTestService()
	for i := 0; i < 30; i++ {
		provider.Candidates = append(provider.Candidates, telephony.NumberCandidate{PhoneNumber: "+1347555000"})
	}

	candidates, err := svc.SearchNumbers(context.Background(), "t1", "347", 0)
	require.NoError(t, err)
	assert.Len(t, candidates, 5)

	candidates, err = svc.SearchNumbers(context.Background(), "t1", "347", 1000)
	require.NoError(t, err)
	assert.Len(t, candidates, 20)
}

func TestSearchNumbersProvisionsSubAccountFirst(t *testing.T) {
	svc, bindings, provider := newTestService()

	_, err := svc.SearchNumbers(context.Background(), "t1", "347", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.SubAccountsCreated)
	binding, err := bindings.GetByTenantID(context.Background(), "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, binding.SubAccountSID)
}

func TestReserveNumberValidatesBeforeProvider(t *testing.T) {
	svc, _, provider := newTestService()

	_, err := svc.ReserveNumber(context.Background(), "t1", "555-1234")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Empty(t, provider.PurchasedNumbers)
	assert.Equal(t, 0, provider.SubAccountsCreated)
}

func TestReserveNumberBindsInboundWebhook(t *testing.T) {
	svc, _, provider := newTestService()

	binding, err := svc.ReserveNumber(context.Background(), "t1", "+1 (347) 555-1234")
	require.NoError(t, err)

	assert.Equal(t, "+13475551234", binding.PhoneNumber)
	assert.NotEmpty(t, binding.PhoneNumberSID)
	assert.Equal(t, "https://api.example.com/webhooks/voice/t1/inbound", binding.InboundWebhookURL)
	assert.Equal(t, []string{"+13475551234"}, provider.PurchasedNumbers)
	assert.True(t, binding.Provisioned())
}

func TestReserveNumberIdempotentForSameNumber(t *testing.T) {
	svc, _, provider := newTestService()

	_, err := svc.ReserveNumber(context.Background(), "t1", "+13475551234")
	require.NoError(t, err)
	_, err = svc.ReserveNumber(context.Background(), "t1", "+13475551234")
	require.NoError(t, err)

	assert.Len(t, provider.PurchasedNumbers, 1)
}

func TestReserveNumberReprovisionOverwrites(t *testing.T) {
	svc, _, provider := newTestService()

	_, err := svc.ReserveNumber(context.Background(), "t1", "+13475551234")
	require.NoError(t, err)
	binding, err := svc.ReserveNumber(context.Background(), "t1", "+16465550000")
	require.NoError(t, err)

	assert.Equal(t, "+16465550000", binding.PhoneNumber)
	assert.Len(t, provider.PurchasedNumbers, 2)
}

func TestSetForwardingRejectsMalformedNumber(t *testing.T) {
	svc, bindings, _ := newTestService()

	_, err := svc.SetForwarding(context.Background(), "t1", true, "555-1234")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	_, err = bindings.GetByTenantID(context.Background(), "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetForwardingPersistsValidNumber(t *testing.T) {
	svc, _, _ := newTestService()

	binding, err := svc.SetForwarding(context.Background(), "t1", true, "+1 347 555 1234")
	require.NoError(t, err)

	assert.True(t, binding.ForwardingEnabled)
	assert.Equal(t, "+13475551234", binding.ForwardingNumber)
}

func TestSetForwardingDisableClearsNumber(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.SetForwarding(context.Background(), "t1", true, "+13475551234")
	require.NoError(t, err)
	binding, err := svc.SetForwarding(context.Background(), "t1", false, "")
	require.NoError(t, err)

	assert.False(t, binding.ForwardingEnabled)
	assert.Empty(t, binding.ForwardingNumber)
}

func TestGetBindingUnprovisionedTenant(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GetBinding(context.Background(), "t-never-seen")

	var notConnected *domain.NotConnectedError
	assert.ErrorAs(t, err, &notConnected)
}

func TestRouteInbound(t *testing.T) {
	stream := "wss://api.example.com/media/stream/t1"

	route := RouteInbound(nil, stream)
	assert.Equal(t, telephony.InboundActionStream, route.Action)
	assert.Equal(t, stream, route.StreamURL)

	route = RouteInbound(&domain.TenantTelephonyBinding{ForwardingEnabled: true, ForwardingNumber: "+13475551234"}, stream)
	assert.Equal(t, telephony.InboundActionForward, route.Action)
	assert.Equal(t, "+13475551234", route.Number)

	// Forwarding flag without a number falls back to the stream.
	route = RouteInbound(&domain.TenantTelephonyBinding{ForwardingEnabled: true}, stream)
	assert.Equal(t, telephony.InboundActionStream, route.Action)
}
