// Package cli implements the interactive BuildingKeeper client. It signs in
// against the gRPC token service, keeps the token pair in a local session
// database and rotates it on demand. Building assets are uploaded through the
// HTTP API and presigned storage URLs.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/buildingkeeper/internal/client/config"
	"github.com/dmitrijs2005/buildingkeeper/internal/client/session"
	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/filex"
	"github.com/dmitrijs2005/buildingkeeper/internal/netx"
	"github.com/dmitrijs2005/buildingkeeper/internal/tokenapi"
)

var errNotLoggedIn = errors.New("not logged in")

// TokenAPI is the token service as seen by the client.
// *tokenapi.TokenServiceClient implements it.
type TokenAPI interface {
	Login(ctx context.Context, email, password string, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, refresh string, opts ...grpc.CallOption) (*structpb.Struct, error)
	Logout(ctx context.Context, refresh string, opts ...grpc.CallOption) error
	LogoutAll(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// SessionStore persists the session. *session.Store implements it.
type SessionStore interface {
	Load(ctx context.Context) (session.Session, error)
	Save(ctx context.Context, s session.Session) error
	Clear(ctx context.Context) error
}

type App struct {
	config     *config.Config
	api        TokenAPI
	buildings  BuildingAPI
	httpClient *http.Client
	store      SessionStore
	session    session.Session
	reader     *bufio.Reader
	out        io.Writer
	closers    []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	if _, err := filex.EnsureParentDir(c.SessionDB); err != nil {
		return nil, fmt.Errorf("error preparing session directory: %w", err)
	}

	store, err := session.Open(ctx, c.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("error initializing session database: %w", err)
	}

	conn, err := grpc.NewClient(c.ServerEndpointAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		store.Close()
		return nil, err
	}

	a := newApp(c, tokenapi.NewTokenServiceClient(conn), store, os.Stdin, os.Stdout)
	a.closers = []func() error{conn.Close, store.Close}
	return a, nil
}

func newApp(c *config.Config, api TokenAPI, store SessionStore, in io.Reader, out io.Writer) *App {
	return &App{
		config:     c,
		api:        api,
		buildings:  newHTTPBuildings(c.HTTPBaseURL, http.DefaultClient),
		httpClient: http.DefaultClient,
		store:      store,
		reader:     bufio.NewReader(in),
		out:        out,
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	sess, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	a.session = sess

	fmt.Fprintln(a.out, "Welcome to BuildingKeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *App) isLoggedIn() bool {
	return !a.session.Empty()
}

func (a *App) status() string {
	if a.session.Email == "" {
		return ""
	}
	return "(" + a.session.Email + ")"
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) authorized(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AuthorizationHeaderName, "Bearer "+a.session.AccessToken)
}

func (a *App) storePair(ctx context.Context, pair *structpb.Struct) error {
	fields := pair.GetFields()
	a.session.AccessToken = fields["access"].GetStringValue()
	a.session.RefreshToken = fields["refresh"].GetStringValue()
	return a.store.Save(ctx, a.session)
}

func (a *App) forget(ctx context.Context) error {
	a.session = session.Session{}
	return a.store.Clear(ctx)
}

func (a *App) report(err error) error {
	if err != nil {
		fmt.Fprintf(a.out, "error: %s\n", status.Convert(err).Message())
	}
	return err
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.report(err)
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	pair, err := a.api.Login(rctx, email, password)
	if err != nil {
		return a.report(err)
	}

	a.session.Email = email
	if err := a.storePair(ctx, pair); err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Refresh rotates the stored token pair. A rejected refresh token ends the
// session, since the server has revoked its whole family.
func (a *App) Refresh(ctx context.Context) error {
	if a.session.RefreshToken == "" {
		return a.report(errNotLoggedIn)
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	pair, err := a.api.Refresh(rctx, a.session.RefreshToken)
	switch status.Code(err) {
	case codes.OK:
	case codes.Unauthenticated, codes.PermissionDenied:
		_ = a.forget(ctx)
		fmt.Fprintln(a.out, "Session ended, please log in again")
		return a.report(err)
	default:
		return a.report(err)
	}

	if err := a.storePair(ctx, pair); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

// WhoAmI prints the signed-in user, refreshing once when the access token
// has expired.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.report(errNotLoggedIn)
	}

	call := func() (*structpb.Struct, error) {
		rctx, cancel := a.withTimeout(ctx)
		defer cancel()
		return a.api.WhoAmI(a.authorized(rctx))
	}

	me, err := call()
	if status.Code(err) == codes.Unauthenticated && a.session.RefreshToken != "" {
		if a.Refresh(ctx) != nil {
			return err
		}
		me, err = call()
	}
	if err != nil {
		return a.report(err)
	}

	fields := me.GetFields()
	fmt.Fprintf(a.out, "%s %s roles=%v\n",
		fields["id"].GetStringValue(),
		fields["email"].GetStringValue(),
		fields["roles"].GetListValue().AsSlice(),
	)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if a.session.RefreshToken != "" {
		rctx, cancel := a.withTimeout(ctx)
		err := a.api.Logout(rctx, a.session.RefreshToken)
		cancel()
		if err != nil {
			// the local session is dropped anyway
			_ = a.report(err)
		}
	}

	if err := a.forget(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.report(errNotLoggedIn)
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()

	out, err := a.api.LogoutAll(a.authorized(rctx))
	if err != nil {
		return a.report(err)
	}

	if err := a.forget(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Logged out everywhere (%d sessions revoked)\n", int64(out.GetFields()["revoked"].GetNumberValue()))
	return nil
}

// Upload registers a building, PUTs its GML model and texture to the
// presigned URLs and marks the upload complete. An expired access token is
// refreshed once.
func (a *App) Upload(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.report(errNotLoggedIn)
	}

	name, err := GetSimpleText(a.reader, "Building name", a.out)
	if err != nil {
		return a.report(err)
	}
	gmlPath, err := GetSimpleText(a.reader, "Path to GML model", a.out)
	if err != nil {
		return a.report(err)
	}
	texturePath, err := GetSimpleText(a.reader, "Path to texture", a.out)
	if err != nil {
		return a.report(err)
	}

	create := func() (*UploadTicket, error) {
		rctx, cancel := a.withTimeout(ctx)
		defer cancel()
		return a.buildings.Create(rctx, a.session.AccessToken, name)
	}

	ticket, err := create()
	if isUnauthorized(err) && a.session.RefreshToken != "" {
		if a.Refresh(ctx) != nil {
			return err
		}
		ticket, err = create()
	}
	if err != nil {
		return a.report(err)
	}

	// file transfers are not bound by the request timeout
	if err := netx.UploadFile(ctx, a.httpClient, ticket.GML.URL, gmlPath); err != nil {
		return a.report(fmt.Errorf("gml: %w", err))
	}
	if err := netx.UploadFile(ctx, a.httpClient, ticket.Texture.URL, texturePath); err != nil {
		return a.report(fmt.Errorf("texture: %w", err))
	}

	rctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.buildings.MarkUploaded(rctx, a.session.AccessToken, ticket.Building.ID); err != nil {
		return a.report(err)
	}

	fmt.Fprintf(a.out, "Building %s uploaded\n", ticket.Building.ID)
	return nil
}
