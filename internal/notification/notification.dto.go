package notification

import "ecoStepAPI/internal/apperr"

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (r *RegisterDeviceRequest) Validate() error {
	if r.Token == "" {
		return apperr.Validation("Device token is required")
	}
	switch r.Platform {
	case PlatformAndroid, PlatformIOS, PlatformWeb:
		return nil
	case "":
		r.Platform = PlatformAndroid
		return nil
	}
	return apperr.Validation("Platform must be one of ios, android, web")
}

type UnregisterDeviceRequest struct {
	Token string `json:"token"`
}
