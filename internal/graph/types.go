package graph

import (
	"time"

	"github.com/mvail/odsync/internal/driveid"
)

// ChildCountUnknown indicates the child count was not present in the API response.
const ChildCountUnknown = -1

// Item represents a OneDrive drive item (file, folder, or package).
// Fields are normalized from the Graph API response — callers never see raw API data.
type Item struct {
	ID            string
	Name          string
	DriveID       string // normalized: lowercase (Graph API casing is inconsistent)
	ParentID      string
	ParentDriveID string // drive containing parent (for cross-drive references)
	Size          int64
	ETag          string
	CTag          string
	IsFolder      bool
	IsRoot        bool
	IsDeleted     bool
	IsPackage     bool // OneNote packages — sync should skip these
	MimeType      string
	QuickXorHash  string // base64-encoded
	SHA1Hash      string // hex (Personal accounts only)
	SHA256Hash    string // hex (Business accounts, sometimes)
	CRC32Hash     string // hex (Personal accounts only)
	CreatedAt     time.Time
	ModifiedAt    time.Time
	ChildCount    int    // ChildCountUnknown if not present
	DownloadURL   string // pre-authenticated, ephemeral; NEVER log (architecture.md §9.2)
}

// User is the authenticated account's profile, from GET /me.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// Drive represents a OneDrive drive: the user's personal drive, or a
// SharePoint document library when accessed via Site/SiteDrives.
type Drive struct {
	ID         driveid.ID
	Name       string
	DriveType  string // "personal", "business", "documentLibrary"
	OwnerName  string
	OwnerEmail string
	QuotaUsed  int64
	QuotaTotal int64
}

// Site is a SharePoint site, returned by SearchSites.
type Site struct {
	ID          string
	DisplayName string
	Name        string
	WebURL      string
}

// Organization is the authenticated account's tenant, from GET
// /me/organization. Personal accounts have an empty DisplayName.
type Organization struct {
	DisplayName string
}

// UploadSession is a resumable upload session created by
// Client.CreateUploadSession. UploadURL is pre-authenticated: subsequent
// chunk requests need no Authorization header.
type UploadSession struct {
	UploadURL      string
	ExpirationTime time.Time
}

// UploadSessionStatus is the result of querying an in-progress upload
// session, used to resume after an interrupted chunked upload.
type UploadSessionStatus struct {
	UploadURL          string
	ExpirationTime     time.Time
	NextExpectedRanges []string
}

// DeltaPage is one page of a drive's delta feed: the normalized items plus
// exactly one of NextLink (more pages follow) or DeltaLink (caller has
// reached the end and should persist DeltaLink as its next sync cursor).
type DeltaPage struct {
	Items     []Item
	NextLink  string
	DeltaLink string
}
