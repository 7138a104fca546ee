package permission

import "context"

// Browser is the strategy for hosts where access is negotiated lazily by the
// media capture call itself. It reports everything as granted.
type Browser struct{}

func NewBrowser() *Browser {
	return &Browser{}
}

func (b *Browser) Check(ctx context.Context) Status {
	return Status{Microphone: AccessGranted, Screen: AccessGranted, NeedsSetup: false}
}

func (b *Browser) RequestMicrophone(ctx context.Context) MicrophoneResult {
	return MicrophoneResult{Granted: true, Status: AccessGranted}
}

func (b *Browser) OpenSettings(ctx context.Context, section string) SettingsResult {
	return SettingsResult{Success: false, Error: ErrUnsupported.Error()}
}
