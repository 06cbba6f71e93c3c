package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"smart-shopping-list/internal/app"
	"smart-shopping-list/internal/session"
	"smart-shopping-list/internal/shopping"
	"smart-shopping-list/internal/store"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errMissingFlag    = errors.New("missing required flag")
)

type cli struct {
	app    *app.App
	out    io.Writer
	locale string
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.register(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "logout":
		if err := c.app.SignOut(ctx); err != nil {
			return authError{err}
		}
		fmt.Fprintln(c.out, "Signed out.")
		return nil
	case "whoami":
		return c.whoami()
	case "products":
		return c.products()
	case "product-add":
		return c.productAdd(ctx, args)
	case "product-edit":
		return c.productEdit(ctx, args)
	case "product-delete":
		id, err := requiredID(args, command, "id")
		if err != nil {
			return err
		}
		if err := c.app.Store.DeleteProduct(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Product deleted and removed from every list.")
		return nil
	case "suggest":
		return c.suggest(ctx, args)
	case "lists":
		return c.lists()
	case "list-show":
		id, err := requiredID(args, command, "id")
		if err != nil {
			return err
		}
		return c.showList(id)
	case "list-create":
		return c.listCreate(ctx, args)
	case "list-rename":
		return c.listRename(ctx, args)
	case "list-delete":
		id, err := requiredID(args, command, "id")
		if err != nil {
			return err
		}
		if err := c.app.Store.DeleteShoppingList(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "List deleted.")
		return nil
	case "item-add", "item-qty", "item-toggle", "item-remove":
		return c.item(ctx, command, args)
	case "usage":
		return c.usage(ctx, args)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(args)

		affected, err := c.app.Metrics.Cleanup(ctx, *days)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Fprintf(c.out, "Successfully removed %d old metric records.\n", affected)
		return nil
	default:
		return errUnknownCommand
	}
}

// authError marks failures to be shown with the localized auth messages.
type authError struct{ err error }

func (e authError) Error() string { return e.err.Error() }
func (e authError) Unwrap() error { return e.err }

func (c *cli) describe(err error) string {
	var ae authError
	if errors.As(err, &ae) || errors.Is(err, session.ErrBackendUnavailable) {
		return session.Describe(err, c.locale)
	}
	if errors.Is(err, store.ErrNotAuthenticated) {
		return "Not signed in. Run 'shoplist login' first."
	}
	return "Error: " + err.Error()
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	confirm := fs.String("confirm", "", "Password confirmation")
	fs.Parse(args)

	res, err := c.app.SignUp(ctx, *email, *password, *confirm)
	if err != nil {
		return authError{err}
	}
	if res.PendingConfirmation {
		fmt.Fprintln(c.out, "Registration successful. Check your email to confirm your account, then run 'shoplist login'.")
		return nil
	}
	fmt.Fprintf(c.out, "Registered and signed in as %s.\n", res.User.Email)
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	u, err := c.app.SignIn(ctx, *email, *password)
	if err != nil {
		return authError{err}
	}
	fmt.Fprintf(c.out, "Signed in as %s.\n", u.Email)
	if !c.app.Config().SessionPersist {
		fmt.Fprintln(c.out, "SESSION_PERSIST is off: the session ends with this command.")
	}
	return nil
}

func (c *cli) whoami() error {
	st := c.app.Session.State()
	if st.Err != nil && !st.Usable {
		return st.Err
	}
	if st.User == nil {
		return store.ErrNotAuthenticated
	}
	fmt.Fprintf(c.out, "%s (%s)\n", st.User.Email, st.User.ID)
	return nil
}

// loaded fails when nothing could be loaded for the signed-in user.
func (c *cli) loaded() error {
	if c.app.Session.UserID() == "" {
		return store.ErrNotAuthenticated
	}
	if !c.app.Store.Loaded() {
		if err := c.app.Store.Err(); err != nil {
			return err
		}
		return errors.New("data is not loaded")
	}
	return nil
}

func (c *cli) products() error {
	if err := c.loaded(); err != nil {
		return err
	}
	products := c.app.Store.Products()
	if len(products) == 0 {
		fmt.Fprintln(c.out, "No products yet. Add one with 'shoplist product-add -name ...'.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION\tIMAGE")
	for _, p := range products {
		image := ""
		if p.ImageBase64 != "" {
			image = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Description, image)
	}
	return tw.Flush()
}

func (c *cli) productAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("product-add", flag.ExitOnError)
	name := fs.String("name", "", "Product name")
	description := fs.String("description", "", "Product description")
	imagePath := fs.String("image", "", "Path to a product photo")
	suggest := fs.Bool("suggest", false, "Fill empty name and description from the photo")
	fs.Parse(args)

	in := shopping.ProductInput{Name: *name, Description: *description}
	if *imagePath != "" {
		dataURL, err := imageDataURL(*imagePath)
		if err != nil {
			return err
		}
		in.ImageBase64 = dataURL

		if *suggest && c.app.Suggester.Available() {
			if s := c.app.Suggester.SuggestFromDataURL(ctx, dataURL); s != nil {
				if in.Name == "" {
					in.Name = s.Name
				}
				if in.Description == "" {
					in.Description = s.Description
				}
			} else {
				fmt.Fprintln(c.out, "No suggestion available for this photo.")
			}
		}
	}

	p, err := c.app.Store.AddProduct(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added product %s (%s).\n", p.Name, p.ID)
	return nil
}

func (c *cli) productEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("product-edit", flag.ExitOnError)
	id := fs.String("id", "", "Product id")
	name := fs.String("name", "", "New name")
	description := fs.String("description", "", "New description")
	imagePath := fs.String("image", "", "Path to a new product photo")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("%w: -id", errMissingFlag)
	}
	if err := c.loaded(); err != nil {
		return err
	}
	p, ok := c.app.Store.Product(*id)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, *id)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			p.Name = *name
		case "description":
			p.Description = *description
		}
	})
	if *imagePath != "" {
		dataURL, err := imageDataURL(*imagePath)
		if err != nil {
			return err
		}
		p.ImageBase64 = dataURL
	}

	updated, err := c.app.Store.UpdateProduct(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated product %s.\n", updated.Name)
	return nil
}

func (c *cli) suggest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	imagePath := fs.String("image", "", "Path to a product photo")
	fs.Parse(args)

	if !c.app.Suggester.Available() {
		return errors.New("product suggestions are disabled, set GEMINI_API_KEY to enable them")
	}
	if *imagePath == "" {
		return fmt.Errorf("%w: -image", errMissingFlag)
	}
	dataURL, err := imageDataURL(*imagePath)
	if err != nil {
		return err
	}

	s := c.app.Suggester.SuggestFromDataURL(ctx, dataURL)
	if s == nil {
		fmt.Fprintln(c.out, "No suggestion available for this photo.")
		return nil
	}
	fmt.Fprintf(c.out, "Name:        %s\nDescription: %s\n", s.Name, s.Description)
	return nil
}

func (c *cli) lists() error {
	if err := c.loaded(); err != nil {
		return err
	}
	lists := c.app.Store.ShoppingLists()
	if len(lists) == 0 {
		fmt.Fprintln(c.out, "No shopping lists yet. Create one with 'shoplist list-create -name ...'.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tITEMS\tPROGRESS\tCREATED")
	for _, l := range lists {
		p := shopping.ListProgress(l)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ID, l.Name, p.Total, formatProgress(p), l.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func (c *cli) showList(id string) error {
	if err := c.loaded(); err != nil {
		return err
	}
	l, ok := c.app.Store.ShoppingList(id)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrListNotFound, id)
	}

	fmt.Fprintf(c.out, "%s  %s\n\n", l.Name, formatProgress(shopping.ListProgress(l)))
	if len(l.Items) == 0 {
		fmt.Fprintln(c.out, "This list is empty.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, it := range l.Items {
		mark := "[ ]"
		if it.IsPurchased {
			mark = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\tx%d\t%s\n", mark, it.ProductName, it.Quantity, it.ProductID)
	}
	return tw.Flush()
}

func (c *cli) listCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-create", flag.ExitOnError)
	name := fs.String("name", "", "List name")
	fs.Parse(args)

	l, err := c.app.Store.AddShoppingList(ctx, *name, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created list %s (%s).\n", l.Name, l.ID)
	return nil
}

func (c *cli) listRename(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-rename", flag.ExitOnError)
	id := fs.String("id", "", "List id")
	name := fs.String("name", "", "New name")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("%w: -id", errMissingFlag)
	}
	if err := c.loaded(); err != nil {
		return err
	}
	l, ok := c.app.Store.ShoppingList(*id)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrListNotFound, *id)
	}
	l.Name = *name

	updated, err := c.app.Store.UpdateShoppingList(ctx, l)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Renamed list to %s.\n", updated.Name)
	return nil
}

func (c *cli) item(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	listID := fs.String("list", "", "List id")
	productID := fs.String("product", "", "Product id")
	qty := fs.Int("qty", 1, "Quantity")
	fs.Parse(args)

	if *listID == "" || *productID == "" {
		return fmt.Errorf("%w: -list and -product", errMissingFlag)
	}

	var (
		l   *shopping.ShoppingList
		err error
	)
	switch command {
	case "item-add":
		l, err = c.app.Store.AddProductToShoppingList(ctx, *listID, *productID, *qty)
	case "item-qty":
		l, err = c.app.Store.UpdateShoppingListItem(ctx, *listID, *productID, shopping.ItemUpdate{Quantity: qty})
	case "item-toggle":
		l, err = c.app.Store.TogglePurchaseItem(ctx, *listID, *productID)
	case "item-remove":
		l, err = c.app.Store.RemoveProductFromShoppingList(ctx, *listID, *productID)
	}
	if err != nil {
		return err
	}
	return c.showList(l.ID)
}

func (c *cli) usage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	days := fs.Int("days", 7, "Number of days to report")
	fs.Parse(args)

	rows, err := c.app.Metrics.GetDailyUsage(ctx, *days)
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "No suggestion calls recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tCALLS\tPROMPT TOKENS\tCOMPLETION TOKENS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", r.Date, r.TotalExecution, r.TotalPrompt, r.TotalCompletion)
	}
	return tw.Flush()
}

// requiredID parses a single required id flag.
func requiredID(args []string, command, flagName string) (string, error) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	id := fs.String(flagName, "", "Record id")
	fs.Parse(args)

	if *id == "" {
		return "", fmt.Errorf("%w: -%s", errMissingFlag, flagName)
	}
	return *id, nil
}

func formatProgress(p shopping.Progress) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Purchased, p.Total, p.Percent)
}

// imageDataURL reads an image file into a data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
