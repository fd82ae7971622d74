package h2c

import (
	"sync"

	"golang.org/x/net/http2"
)

const maxSettingID = http2.SettingMaxHeaderListSize

// settings is a set of http2 settings
type settings struct {
	mu       sync.RWMutex
	settings [maxSettingID + 1]uint32
	on       [maxSettingID + 1][]func(old, new uint32)
}

// newPeerSettings creates a settings instance with the RFC 9113 initial
// values, which apply until the client's SETTINGS frame arrives
func newPeerSettings() *settings {
	s := &settings{}
	s.settings[http2.SettingHeaderTableSize] = 4096
	s.settings[http2.SettingEnablePush] = 1
	s.settings[http2.SettingMaxConcurrentStreams] = 0xffffffff
	s.settings[http2.SettingInitialWindowSize] = 65535
	s.settings[http2.SettingMaxFrameSize] = 16384
	s.settings[http2.SettingMaxHeaderListSize] = 0xffffffff
	return s
}

// On registers a callback for changes of a setting. Callbacks run on the
// frame read loop with the settings lock held, they must not call Get.
func (s *settings) On(id http2.SettingID, do func(old, new uint32)) {
	s.on[id] = append(s.on[id], do)
}

func (s *settings) Get(id http2.SettingID) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[id]
}

func (s *settings) UpdateFrom(frame *http2.SettingsFrame) error {
	if err := frame.ForeachSetting(func(st http2.Setting) error {
		return st.Valid()
	}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return frame.ForeachSetting(func(st http2.Setting) error {
		if st.ID > maxSettingID || st.ID == 0 {
			return nil // unknown settings MUST be ignored
		}
		old := s.settings[st.ID]
		s.settings[st.ID] = st.Val
		for _, v := range s.on[st.ID] {
			v(old, st.Val)
		}
		return nil
	})
}
