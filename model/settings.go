package model

// Profile is the poster's own handle, remembered between submissions.
type Profile struct {
	Nickname    string `json:"nickname"`
	ContactInfo string `json:"contactInfo"`
}

// Settings is the admin-editable configuration kept in local storage.
type Settings struct {
	SheetURL   string `json:"sheetUrl"`
	AdminEmail string `json:"adminEmail"`
	AdminPhone string `json:"adminPhone"`
}
