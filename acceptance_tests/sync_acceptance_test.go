package acceptance_tests

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smart-shopping-list/internal/app"
	"smart-shopping-list/internal/config"
	"smart-shopping-list/internal/session"
	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	email    = "ana@example.com"
	password = "secret123"
)

func newConfig(f *fakeSupabase, dbPath string) *config.Config {
	return &config.Config{
		SupabaseURL:          f.URL,
		SupabaseAnonKey:      anonKey,
		DatabasePath:         dbPath,
		SessionPersist:       true,
		SessionRefreshMargin: time.Minute,
		SuggestionsPerMinute: 10,
		Locale:               "es",
	}
}

// startApp wires and starts an application; the caller closes it.
func startApp(t *testing.T, f *fakeSupabase, dbPath string) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), newConfig(f, dbPath))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	return a
}

func signedInApp(t *testing.T) (*fakeSupabase, *app.App) {
	t.Helper()
	f := newFakeSupabase(t)
	a := startApp(t, f, filepath.Join(t.TempDir(), "shoplist.db"))
	t.Cleanup(func() { a.Close() })

	res, err := a.SignUp(context.Background(), email, password, password)
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.True(t, a.Store.Loaded())
	return f, a
}

type listView struct {
	ID    string
	Name  string
	Items []shopping.Item
}

func view(lists []shopping.ShoppingList) []listView {
	out := make([]listView, len(lists))
	for i, l := range lists {
		out[i] = listView{ID: l.ID, Name: l.Name, Items: l.Items}
	}
	return out
}

func TestGroceriesScenario(t *testing.T) {
	ctx := context.Background()
	_, a := signedInApp(t)

	milk, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Milk"})
	require.NoError(t, err)
	list, err := a.Store.AddShoppingList(ctx, "Groceries", nil)
	require.NoError(t, err)

	l, err := a.Store.AddProductToShoppingList(ctx, list.ID, milk.ID, 1)
	require.NoError(t, err)
	require.Len(t, l.Items, 1)
	assert.False(t, l.Items[0].IsPurchased)

	l, err = a.Store.TogglePurchaseItem(ctx, list.ID, milk.ID)
	require.NoError(t, err)
	assert.True(t, l.Items[0].IsPurchased)
	progress, ok := a.Store.Progress(list.ID)
	require.True(t, ok)
	assert.Equal(t, 100.0, progress.Percent)

	l, err = a.Store.RemoveProductFromShoppingList(ctx, list.ID, milk.ID)
	require.NoError(t, err)
	assert.Empty(t, l.Items)
	progress, _ = a.Store.Progress(list.ID)
	assert.Equal(t, 0.0, progress.Percent)
	assert.Equal(t, 0, progress.Total)
}

func TestAddingSameProductTwiceMergesQuantity(t *testing.T) {
	ctx := context.Background()
	f, a := signedInApp(t)

	eggs, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Eggs"})
	require.NoError(t, err)
	list, err := a.Store.AddShoppingList(ctx, "Weekly", nil)
	require.NoError(t, err)

	_, err = a.Store.AddProductToShoppingList(ctx, list.ID, eggs.ID, 2)
	require.NoError(t, err)
	l, err := a.Store.AddProductToShoppingList(ctx, list.ID, eggs.ID, 2)
	require.NoError(t, err)

	require.Len(t, l.Items, 1)
	assert.Equal(t, 4, l.Items[0].Quantity)

	remote, err := f.Remote().ListShoppingLists(ctx, a.Session.UserID())
	require.NoError(t, err)
	require.Len(t, remote, 1)
	assert.Equal(t, l.Items, remote[0].Items)
}

func TestUpdateItemQuantityTouchesOnlyThatItem(t *testing.T) {
	ctx := context.Background()
	_, a := signedInApp(t)

	bread, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Bread"})
	require.NoError(t, err)
	jam, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Jam"})
	require.NoError(t, err)
	list, err := a.Store.AddShoppingList(ctx, "Breakfast", nil)
	require.NoError(t, err)
	_, err = a.Store.AddProductToShoppingList(ctx, list.ID, bread.ID, 1)
	require.NoError(t, err)
	before, err := a.Store.AddProductToShoppingList(ctx, list.ID, jam.ID, 1)
	require.NoError(t, err)

	five := 5
	after, err := a.Store.UpdateShoppingListItem(ctx, list.ID, bread.ID, shopping.ItemUpdate{Quantity: &five})
	require.NoError(t, err)

	assert.Equal(t, before.Name, after.Name)
	require.Len(t, after.Items, 2)
	assert.Equal(t, 5, after.Items[0].Quantity)
	assert.Equal(t, before.Items[1], after.Items[1])
}

func TestTogglePurchaseIsItsOwnInverse(t *testing.T) {
	ctx := context.Background()
	_, a := signedInApp(t)

	apples, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Apples"})
	require.NoError(t, err)
	list, err := a.Store.AddShoppingList(ctx, "Fruit", nil)
	require.NoError(t, err)
	original, err := a.Store.AddProductToShoppingList(ctx, list.ID, apples.ID, 3)
	require.NoError(t, err)

	_, err = a.Store.TogglePurchaseItem(ctx, list.ID, apples.ID)
	require.NoError(t, err)
	back, err := a.Store.TogglePurchaseItem(ctx, list.ID, apples.ID)
	require.NoError(t, err)

	assert.Equal(t, original.Items, back.Items)
}

func TestDeleteProductCascadesAcrossLists(t *testing.T) {
	ctx := context.Background()
	f, a := signedInApp(t)

	butter, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Butter"})
	require.NoError(t, err)
	salt, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Salt"})
	require.NoError(t, err)

	for _, name := range []string{"Weekly", "Party"} {
		l, err := a.Store.AddShoppingList(ctx, name, nil)
		require.NoError(t, err)
		_, err = a.Store.AddProductToShoppingList(ctx, l.ID, butter.ID, 1)
		require.NoError(t, err)
		_, err = a.Store.AddProductToShoppingList(ctx, l.ID, salt.ID, 1)
		require.NoError(t, err)
	}

	require.NoError(t, a.Store.DeleteProduct(ctx, butter.ID))
	assert.Equal(t, int32(1), f.rpcCalls.Load())

	_, found := a.Store.Product(butter.ID)
	assert.False(t, found)
	for _, l := range a.Store.ShoppingLists() {
		_, has := l.Item(butter.ID)
		assert.False(t, has, "list %s still references the deleted product", l.Name)
		assert.Len(t, l.Items, 1)
	}

	mirror := view(a.Store.ShoppingLists())
	require.NoError(t, a.Store.RefreshAll(ctx))
	assert.Equal(t, mirror, view(a.Store.ShoppingLists()))

	products, err := f.Remote().ListProducts(ctx, a.Session.UserID())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, salt.ID, products[0].ID)
}

func TestRenamingProductRefreshesLocalSnapshots(t *testing.T) {
	ctx := context.Background()
	f, a := signedInApp(t)

	p, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Yoghurt"})
	require.NoError(t, err)
	first, err := a.Store.AddShoppingList(ctx, "First", nil)
	require.NoError(t, err)
	second, err := a.Store.AddShoppingList(ctx, "Second", nil)
	require.NoError(t, err)
	for _, id := range []string{first.ID, second.ID} {
		_, err := a.Store.AddProductToShoppingList(ctx, id, p.ID, 1)
		require.NoError(t, err)
	}
	order := view(a.Store.ShoppingLists())

	p.Name = "Greek yoghurt"
	_, err = a.Store.UpdateProduct(ctx, *p)
	require.NoError(t, err)

	lists := a.Store.ShoppingLists()
	require.Len(t, lists, 2)
	for i, l := range lists {
		assert.Equal(t, order[i].ID, l.ID)
		assert.Equal(t, "Greek yoghurt", l.Items[0].ProductName)
	}

	// the backend keeps the snapshot taken when the item was added
	remote, err := f.Remote().ListShoppingLists(ctx, a.Session.UserID())
	require.NoError(t, err)
	for _, l := range remote {
		assert.Equal(t, "Yoghurt", l.Items[0].ProductName)
	}
}

func TestSignedOutMutationsMakeNoNetworkCalls(t *testing.T) {
	ctx := context.Background()
	f, a := signedInApp(t)

	p, err := a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Rice"})
	require.NoError(t, err)
	l, err := a.Store.AddShoppingList(ctx, "Pantry", nil)
	require.NoError(t, err)

	require.NoError(t, a.SignOut(ctx))
	assert.Empty(t, a.Store.Products())
	assert.Empty(t, a.Store.ShoppingLists())

	hits := f.Hits()
	one := 1

	_, err = a.Store.AddProduct(ctx, shopping.ProductInput{Name: "Beans"})
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	_, err = a.Store.UpdateProduct(ctx, *p)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	assert.ErrorIs(t, a.Store.DeleteProduct(ctx, p.ID), store.ErrNotAuthenticated)
	_, err = a.Store.AddShoppingList(ctx, "Other", nil)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	_, err = a.Store.UpdateShoppingList(ctx, *l)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	assert.ErrorIs(t, a.Store.DeleteShoppingList(ctx, l.ID), store.ErrNotAuthenticated)
	_, err = a.Store.AddProductToShoppingList(ctx, l.ID, p.ID, 1)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	_, err = a.Store.UpdateShoppingListItem(ctx, l.ID, p.ID, shopping.ItemUpdate{Quantity: &one})
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	_, err = a.Store.TogglePurchaseItem(ctx, l.ID, p.ID)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	_, err = a.Store.RemoveProductFromShoppingList(ctx, l.ID, p.ID)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	assert.NoError(t, a.Store.RefreshAll(ctx))

	assert.Equal(t, hits, f.Hits())
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	f := newFakeSupabase(t)
	dbPath := filepath.Join(t.TempDir(), "shoplist.db")

	first := startApp(t, f, dbPath)
	_, err := first.SignUp(ctx, email, password, password)
	require.NoError(t, err)
	_, err = first.Store.AddProduct(ctx, shopping.ProductInput{Name: "Coffee"})
	require.NoError(t, err)
	userID := first.Session.UserID()
	require.NoError(t, first.Close())

	t.Run("RestoredAndLoaded", func(t *testing.T) {
		second := startApp(t, f, dbPath)
		defer second.Close()

		assert.Equal(t, userID, second.Session.UserID())
		require.True(t, second.Store.Loaded())
		products := second.Store.Products()
		require.Len(t, products, 1)
		assert.Equal(t, "Coffee", products[0].Name)
	})

	t.Run("RevokedSessionIsDiscarded", func(t *testing.T) {
		f.RevokeAll()

		third := startApp(t, f, dbPath)
		defer third.Close()

		assert.Empty(t, third.Session.UserID())
		assert.False(t, third.Session.State().HasSession)
		assert.False(t, third.Store.Loaded())
	})

	t.Run("NothingLeftToRestore", func(t *testing.T) {
		fourth := startApp(t, f, dbPath)
		defer fourth.Close()
		assert.Empty(t, fourth.Session.UserID())
	})
}

func TestAuthenticationErrors(t *testing.T) {
	ctx := context.Background()
	f := newFakeSupabase(t)
	a := startApp(t, f, filepath.Join(t.TempDir(), "shoplist.db"))
	defer a.Close()

	_, err := a.SignUp(ctx, email, password, password)
	require.NoError(t, err)
	require.NoError(t, a.SignOut(ctx))

	t.Run("InvalidCredentials", func(t *testing.T) {
		_, err := a.SignIn(ctx, email, "wrong-password")
		require.Error(t, err)
		assert.True(t, session.IsRejected(err))
		assert.Equal(t, "Credenciales inválidas. Por favor, inténtalo de nuevo.", session.Describe(err, "es"))
		assert.Empty(t, a.Session.UserID())
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		_, err := a.SignUp(ctx, email, password, password)
		require.Error(t, err)
		assert.Equal(t, "Este correo electrónico ya está registrado. Intenta iniciar sesión.", session.Describe(err, "es"))
	})

	t.Run("PendingConfirmation", func(t *testing.T) {
		f.confirmEmail.Store(true)
		defer f.confirmEmail.Store(false)

		res, err := a.SignUp(ctx, "luis@example.com", password, password)
		require.NoError(t, err)
		assert.True(t, res.PendingConfirmation)
		assert.Empty(t, a.Session.UserID())
	})

	t.Run("SignInLoadsData", func(t *testing.T) {
		u, err := a.SignIn(ctx, email, password)
		require.NoError(t, err)
		assert.Equal(t, email, u.Email)
		assert.True(t, a.Store.Loaded())
	})
}
