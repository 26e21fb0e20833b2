package okta

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Page limits for the list endpoints. Users are fetched in small pages on
// purpose: profiles are large and Okta serves cursors cheaply.
const (
	groupPageLimit = 200
	userPageLimit  = 10

	// memberBatchSize bounds concurrent member-list fetches: groups are
	// processed in fixed batches, all fetches within a batch in flight at
	// once, batches strictly sequential.
	memberBatchSize = 20
)

// User is an Okta user. Profile holds the raw profile object so attribute
// templates can reference any field. ShortName, DN and Groups are filled in
// during snapshot building and linking.
type User struct {
	ID      string         `json:"id"`
	Profile map[string]any `json:"profile"`

	ShortName string   `json:"-"`
	DN        string   `json:"-"`
	Groups    []*Group `json:"-"`
}

func (u *User) profileString(field string) string {
	s, _ := u.Profile[field].(string)
	return s
}

// Email returns the profile email address.
func (u *User) Email() string {
	return u.profileString("email")
}

// Login returns the identity used for upstream credential checks.
func (u *User) Login() string {
	return u.profileString("login")
}

// Record returns the template-rendering view of the user. Group references
// are shallow (no member lists) so the record stays acyclic.
func (u *User) Record() map[string]any {
	groups := make([]any, len(u.Groups))
	for i, g := range u.Groups {
		groups[i] = g.ref()
	}
	return map[string]any{
		"id":        u.ID,
		"profile":   u.Profile,
		"shortName": u.ShortName,
		"dn":        u.DN,
		"groups":    groups,
	}
}

func (u *User) ref() map[string]any {
	return map[string]any{
		"id":        u.ID,
		"profile":   u.Profile,
		"shortName": u.ShortName,
		"dn":        u.DN,
	}
}

// Group is an Okta group. MemberIDs holds the raw ids from the member
// endpoint; linking resolves them into Members and drops ids that do not
// belong to an active user.
type Group struct {
	ID      string         `json:"id"`
	Profile map[string]any `json:"profile"`
	Links   struct {
		Users struct {
			Href string `json:"href"`
		} `json:"users"`
	} `json:"_links"`

	MemberIDs []string `json:"-"`
	Members   []*User  `json:"-"`
	DN        string   `json:"-"`
}

// Name returns the profile group name.
func (g *Group) Name() string {
	s, _ := g.Profile["name"].(string)
	return s
}

// Record returns the template-rendering view of the group, with shallow
// member references.
func (g *Group) Record() map[string]any {
	members := make([]any, len(g.Members))
	for i, u := range g.Members {
		members[i] = u.ref()
	}
	return map[string]any{
		"id":      g.ID,
		"profile": g.Profile,
		"dn":      g.DN,
		"members": members,
	}
}

func (g *Group) ref() map[string]any {
	return map[string]any{
		"id":      g.ID,
		"profile": g.Profile,
		"dn":      g.DN,
	}
}

// Directory is the fully linked result of one upstream fetch.
type Directory struct {
	Users  []*User
	Groups []*Group
}

// ListGroups fetches every group in the org.
func (c *Client) ListGroups(ctx context.Context) ([]*Group, error) {
	c.logger.Info("fetching okta groups")
	query := url.Values{"limit": {strconv.Itoa(groupPageLimit)}}
	return fetchAll[*Group](ctx, c, c.baseURL+"/api/v1/groups?"+query.Encode())
}

// ListUsers fetches every active user in the org.
func (c *Client) ListUsers(ctx context.Context) ([]*User, error) {
	c.logger.Info("fetching okta users")
	query := url.Values{
		"limit":  {strconv.Itoa(userPageLimit)},
		"filter": {`status eq "ACTIVE"`},
	}
	return fetchAll[*User](ctx, c, c.baseURL+"/api/v1/users?"+query.Encode())
}

// memberRef is the slice of a member-list response we keep: only the id,
// resolved against the active-user set during linking.
type memberRef struct {
	ID string `json:"id"`
}

// LoadMembers populates MemberIDs for every group. Fetches run concurrently
// within a fixed-size batch; batch N+1 starts only after batch N fully
// completed, which bounds simultaneous outbound connections. The first
// failure aborts the whole operation.
func (c *Client) LoadMembers(ctx context.Context, groups []*Group) error {
	for start := 0; start < len(groups); start += memberBatchSize {
		batch := groups[start:min(start+memberBatchSize, len(groups))]

		var wg sync.WaitGroup
		errs := make([]error, len(batch))
		for i, g := range batch {
			wg.Add(1)
			go func(i int, g *Group) {
				defer wg.Done()
				c.logger.Info("fetching okta group members", slog.String("group", g.Name()))
				members, err := fetchAll[memberRef](ctx, c, g.Links.Users.Href)
				if err != nil {
					errs[i] = err
					return
				}
				ids := make([]string, len(members))
				for j, m := range members {
					ids[j] = m.ID
				}
				g.MemberIDs = ids
			}(i, g)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildDirectory fetches groups (with members) and users concurrently, then
// links them both ways: group member-id lists become resolved user
// references, and each resolved user gains a back-reference to the group.
func (c *Client) BuildDirectory(ctx context.Context) (*Directory, error) {
	var (
		wg        sync.WaitGroup
		groups    []*Group
		users     []*User
		groupsErr error
		usersErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		groups, groupsErr = c.ListGroups(ctx)
		if groupsErr != nil {
			return
		}
		groupsErr = c.LoadMembers(ctx, groups)
	}()
	go func() {
		defer wg.Done()
		users, usersErr = c.ListUsers(ctx)
	}()
	wg.Wait()

	if groupsErr != nil {
		return nil, groupsErr
	}
	if usersErr != nil {
		return nil, usersErr
	}

	dir := &Directory{Users: users, Groups: groups}
	link(dir)
	return dir, nil
}

// link resolves group membership in both directions. Member ids without a
// matching active user are dropped.
func link(dir *Directory) {
	usersByID := make(map[string]*User, len(dir.Users))
	for _, u := range dir.Users {
		usersByID[u.ID] = u
	}

	for _, g := range dir.Groups {
		members := make([]*User, 0, len(g.MemberIDs))
		for _, id := range g.MemberIDs {
			u, ok := usersByID[id]
			if !ok {
				continue
			}
			u.Groups = append(u.Groups, g)
			members = append(members, u)
		}
		g.Members = members
	}
}

// ShortNameFromEmail derives the short login name used in user DNs: the
// local part of the email address.
func ShortNameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
