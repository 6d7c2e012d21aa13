package config

// Load creates a manager with the browser and server sections registered
// and loads them from the file at configPath (~/.chromectl/config.json when
// empty). A missing file yields the defaults.
func Load(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewBrowserSection()); err != nil {
		return nil, err
	}
	if err := manager.RegisterSection(NewServerSection()); err != nil {
		return nil, err
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Browser returns m's browser section.
func (m *Manager) Browser() *BrowserSection {
	section, ok := m.GetSection(SectionIDBrowser)
	if !ok {
		return nil
	}
	browser, _ := section.(*BrowserSection)
	return browser
}

// Server returns m's server section.
func (m *Manager) Server() *ServerSection {
	section, ok := m.GetSection(SectionIDServer)
	if !ok {
		return nil
	}
	server, _ := section.(*ServerSection)
	return server
}

// Path returns the file backing m, or "" for stores that are not files.
func (m *Manager) Path() string {
	if fs, ok := m.Store().(interface{ Path() string }); ok {
		return fs.Path()
	}
	return ""
}
