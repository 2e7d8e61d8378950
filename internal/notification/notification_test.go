package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/gamification"
)

func TestRegisterDeviceRequestValidate(t *testing.T) {
	req := RegisterDeviceRequest{Token: "abc"}
	require.NoError(t, req.Validate())
	assert.Equal(t, PlatformAndroid, req.Platform)

	req = RegisterDeviceRequest{Token: "abc", Platform: "ios"}
	assert.NoError(t, req.Validate())

	req = RegisterDeviceRequest{Platform: "ios"}
	assert.True(t, apperr.Is(req.Validate(), apperr.KindValidation))

	req = RegisterDeviceRequest{Token: "abc", Platform: "symbian"}
	assert.True(t, apperr.Is(req.Validate(), apperr.KindValidation))
}

func TestMessages(t *testing.T) {
	m := BadgeMessage("u1", gamification.Badge{Name: "Eco Warrior", Icon: "⚔️"})
	assert.Equal(t, NotificationBadge, m.Type)
	assert.Contains(t, m.Title, "Eco Warrior")
	assert.Equal(t, "Eco Warrior", m.Data["badge"])

	m = LevelUpMessage("u1", 3)
	assert.Equal(t, "You reached level 3.", m.Body)
	assert.Equal(t, 3, m.Data["level"])
}

func TestSendPushWithoutTokens(t *testing.T) {
	s := &FCMService{}
	stale, err := s.SendPush(context.Background(), nil, "t", "b", nil)
	assert.NoError(t, err)
	assert.Empty(t, stale)
}
