package boot

import (
	"connectwork/src/config"
	"connectwork/src/db/dbtest"
	"connectwork/src/types"
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitBrokerWithoutBackends(t *testing.T) {
	cfg := &config.Config{APIEnv: types.Test}

	pubs, closers := InitBroker(context.Background(), cfg, aws.Config{}, false)

	assert.Empty(t, pubs)
	assert.Empty(t, closers)
}

func TestInitBrokerPusher(t *testing.T) {
	cfg := &config.Config{
		APIEnv: types.Production,
		Pusher: config.Pusher{AppID: "1", Key: "k", Secret: "s", Cluster: "eu"},
	}

	pubs, _ := InitBroker(context.Background(), cfg, aws.Config{}, false)

	require.Len(t, pubs, 1)
	assert.Equal(t, "pusher", pubs[0].Name())
}

func TestInitAWSDisabledWithoutRegion(t *testing.T) {
	_, ok := InitAWS(context.Background(), &config.Config{})
	assert.False(t, ok)
}

func TestAssemble(t *testing.T) {
	cfg := &config.Config{Mpesa: config.Mpesa{
		ShortCode:     config.DefaultShortCode,
		CountryCode:   config.DefaultCountryCode,
		Environment:   types.MPESA_SANDBOX,
		PollInterval:  time.Second,
		PollAttempts:  3,
		SweepInterval: time.Minute,
		SweepAge:      time.Minute,
	}}

	app := Assemble(cfg, Deps{Store: dbtest.NewMemoryStore()})
	defer app.Close()

	assert.NotNil(t, app.Mpesa)
	assert.NotNil(t, app.Reconciler)
	assert.NotNil(t, app.Payments)
	assert.NotNil(t, app.MpesaAPI)
	assert.Equal(t, time.Minute, app.Sweeper.Age)
	assert.Equal(t, app.Reconciler, app.Sweeper.Reconciler)
	assert.Equal(t, "https://sandbox.safaricom.co.ke", app.Mpesa.Config().BaseURL())

	require.NoError(t, app.InitScheduler())
	assert.Len(t, app.scheduler.Jobs(), 2)
}
