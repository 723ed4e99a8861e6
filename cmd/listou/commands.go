package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"listou/internal/app"
	"listou/internal/apperr"
	"listou/internal/export"
	"listou/internal/history"
	"listou/internal/kvstore"
	"listou/internal/liststore"
	"listou/internal/metrics"
	"listou/internal/notify"
	"listou/internal/shopping"
)

type cli struct {
	session     *app.Session
	kv          *kvstore.Store
	exporter    *export.Exporter
	inbox       *notify.Inbox
	notifier    notify.Notifier
	activity    *metrics.Store
	dbPath      string
	syncTimeout time.Duration
	log         *zap.Logger
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", apperr.UserMessage(err))
	os.Exit(1)
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add":
		return c.add(ctx, args)
	case "basket":
		c.sync(ctx)
		added, err := c.session.AddBasket(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Added %d items.\n", len(added))
	case "ls":
		c.sync(ctx)
		printList(c.session.List().Items())
	case "toggle":
		return c.withItem(ctx, "toggle", args, func(id string) error {
			item, err := c.session.List().ToggleBought(ctx, id)
			if err == nil {
				fmt.Printf("%s %s\n", export.StatusMarker(item.Bought), item.Name)
			}
			return err
		})
	case "edit":
		return c.edit(ctx, args)
	case "rm":
		return c.withItem(ctx, "rm", args, func(id string) error {
			return c.session.List().Remove(ctx, id)
		})
	case "clear":
		c.sync(ctx)
		return c.session.List().Clear(ctx)
	case "complete":
		c.sync(ctx)
		entry, err := c.session.Complete(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d items (%s) to history.\n", entry.TotalItems, export.FormatMoney(entry.TotalPrice))
	case "signup", "login":
		return c.credentials(ctx, cmd, args)
	case "logout":
		return c.session.Logout(ctx)
	case "whoami":
		c.whoami()
	case "pair":
		return c.pair(ctx, args)
	case "unpair":
		return c.session.Disconnect(ctx)
	case "watch":
		return c.watch(ctx)
	case "push":
		return c.push(ctx, args)
	case "history":
		return c.history(ctx, args)
	case "export":
		return c.export(ctx, args)
	case "import":
		return c.importFile(ctx, args)
	case "theme":
		return c.theme(ctx, args)
	case "stats":
		return c.stats(ctx, args)
	case "status":
		c.status(ctx)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(args)

		affected, err := c.activity.Cleanup(ctx, *days)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully removed %d old activity records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	return nil
}

// sync waits briefly for the shared document so one-shot commands act on the current list.
func (c *cli) sync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.syncTimeout)
	defer cancel()
	if err := c.session.AwaitSync(ctx); err != nil {
		c.log.Warn("working on the local copy", zap.Error(err))
	}
}

func (c *cli) add(ctx context.Context, args []string) error {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	qty := addCmd.Float64("qty", 1, "Quantity")
	unit := addCmd.String("unit", shopping.DefaultUnit, "Unit")
	category := addCmd.String("category", string(shopping.DefaultCategory), "Category")
	price := addCmd.String("price", "", "Unit price")
	addCmd.Parse(reorder(args))

	name := strings.Join(addCmd.Args(), " ")
	item := shopping.Item{
		Name:     name,
		Quantity: *qty,
		Unit:     *unit,
		Category: shopping.Category(*category),
	}
	if *price != "" {
		p, err := parseAmount(*price)
		if err != nil {
			return err
		}
		item.Price = p
	}

	c.sync(ctx)
	added, err := c.session.Add(ctx, item)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s).\n", added.Name, export.FormatQuantity(added.Quantity, added.Unit))
	return nil
}

func (c *cli) edit(ctx context.Context, args []string) error {
	editCmd := flag.NewFlagSet("edit", flag.ExitOnError)
	name := editCmd.String("name", "", "New name")
	qty := editCmd.String("qty", "", "New quantity")
	unit := editCmd.String("unit", "", "New unit")
	category := editCmd.String("category", "", "New category")
	price := editCmd.String("price", "", "New unit price")
	clearPrice := editCmd.Bool("clear-price", false, "Forget the price")
	editCmd.Parse(reorder(args))

	var patch shopping.Patch
	if *name != "" {
		patch.Name = name
	}
	if *qty != "" {
		v, err := strconv.ParseFloat(*qty, 64)
		if err != nil {
			return apperr.Validation("quantity must be a number", err)
		}
		patch.Quantity = &v
	}
	if *unit != "" {
		patch.Unit = unit
	}
	if *category != "" {
		cat := shopping.Category(*category)
		patch.Category = &cat
	}
	if *price != "" {
		p, err := parseAmount(*price)
		if err != nil {
			return err
		}
		patch.Price = p
	}
	patch.ClearPrice = *clearPrice

	return c.withItem(ctx, "edit", editCmd.Args(), func(id string) error {
		item, err := c.session.List().Update(ctx, id, patch)
		if err == nil {
			fmt.Printf("Updated %s.\n", item.Name)
		}
		return err
	})
}

// withItem resolves the single item argument, by 1-based position in ls order or by ID.
func (c *cli) withItem(ctx context.Context, cmd string, args []string, fn func(id string) error) error {
	if len(args) != 1 {
		return apperr.Validation(fmt.Sprintf("%s takes exactly one item", cmd), nil)
	}
	c.sync(ctx)

	id, err := resolveItem(listOrder(c.session.List().Items()), args[0])
	if err != nil {
		return err
	}
	return fn(id)
}

// resolveItem maps ref to an item ID. ref is a 1-based position in items, a full ID, or an ID
// prefix of at least six characters.
func resolveItem(items []shopping.Item, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(items) {
		return items[n-1].ID, nil
	}
	for _, item := range items {
		if item.ID == ref || (len(ref) >= 6 && strings.HasPrefix(item.ID, ref)) {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("%q: %w", ref, liststore.ErrNotFound)
}

func (c *cli) credentials(ctx context.Context, cmd string, args []string) error {
	credCmd := flag.NewFlagSet(cmd, flag.ExitOnError)
	email := credCmd.String("email", "", "Email")
	password := credCmd.String("password", "", "Password")
	credCmd.Parse(args)

	login := c.session.Login
	if cmd == "signup" {
		login = c.session.Signup
	}
	id, err := login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", id.Email)
	return nil
}

func (c *cli) whoami() {
	id, ok := c.session.Identity()
	if !ok {
		fmt.Println("Not logged in.")
	} else {
		fmt.Printf("Logged in as %s (%s).\n", id.Email, id.DisplayName())
	}
	if code := c.session.PairingCode(); code != "" {
		fmt.Printf("Paired with code %s.\n", code)
	} else {
		fmt.Println("Not paired.")
	}
}

func (c *cli) pair(ctx context.Context, args []string) error {
	if len(args) == 0 {
		code, err := c.session.CreatePairing(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Share this code with your partner: %s\n", code)
		return nil
	}

	code, err := c.session.Pair(ctx, args[0])
	if err != nil {
		return err
	}
	c.sync(ctx)
	if err := c.session.SyncError(); err != nil {
		fmt.Printf("Paired with %s, but the shared list is unavailable: %s\n", code, apperr.UserMessage(err))
		return nil
	}
	fmt.Printf("Paired with %s. The list now has %d items.\n", code, c.session.List().Len())
	return nil
}

func (c *cli) watch(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.session.List().OnChange(func(ch liststore.Change) {
		fmt.Printf("\n[%s] list changed\n", ch.Origin)
		printList(ch.Items)
	})
	if c.inbox != nil {
		if scope := c.session.HistoryScope().Key(); scope != "" {
			go func() {
				err := c.inbox.Listen(ctx, scope, func(m notify.Message) {
					c.notifier.PushMessage(ctx, m)
					fmt.Printf("\n%s: %s\n", m.Title, m.Body)
				})
				if err != nil {
					c.log.Error("push messages unavailable", zap.Error(err))
				}
			}()
		}
	}

	c.sync(ctx)
	printList(c.session.List().Items())
	fmt.Println("\nWatching, press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}

func (c *cli) push(ctx context.Context, args []string) error {
	pushCmd := flag.NewFlagSet("push", flag.ExitOnError)
	title := pushCmd.String("title", "", "Title")
	body := pushCmd.String("body", "", "Body")
	pushCmd.Parse(args)

	if c.inbox == nil {
		return errors.New("push messages need REDIS_URL")
	}
	scope := c.session.HistoryScope().Key()
	if scope == "" {
		return apperr.Auth("Login required to send notifications")
	}
	n, err := c.inbox.Send(ctx, scope, notify.Message{Title: *title, Body: *body})
	if err != nil {
		return err
	}
	fmt.Printf("Delivered to %d listeners.\n", n)
	return nil
}

func (c *cli) history(ctx context.Context, args []string) error {
	sub := "ls"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	scope := c.session.HistoryScope()
	if scope.UserID == "" {
		return apperr.Auth("Login required to see history")
	}

	switch sub {
	case "ls":
		entries, err := c.session.History().Load(ctx, scope)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No saved lists.")
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %d items  %s  by %s\n",
				e.ID, e.Date.Local().Format("02/01/2006 15:04"), e.TotalItems, export.FormatMoney(e.TotalPrice), e.SavedBy)
		}
	case "rm":
		rmCmd := flag.NewFlagSet("history rm", flag.ExitOnError)
		yes := rmCmd.Bool("yes", false, "Do not ask for confirmation")
		rmCmd.Parse(reorder(args))
		if rmCmd.NArg() != 1 {
			return apperr.Validation("history rm takes exactly one entry ID", nil)
		}

		confirm := confirmDelete
		if *yes {
			confirm = func(history.Entry) bool { return true }
		}
		removed, err := c.session.History().Remove(ctx, rmCmd.Arg(0), confirm)
		if err != nil {
			return err
		}
		if removed {
			fmt.Println("Deleted.")
		}
	default:
		return apperr.Validation(fmt.Sprintf("unknown history command %q", sub), nil)
	}
	return nil
}

func confirmDelete(e history.Entry) bool {
	fmt.Printf("Delete the list of %s (%d items)? [y/N] ", e.Date.Local().Format("02/01/2006"), e.TotalItems)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "s" || answer == "yes" || answer == "sim"
}

func (c *cli) export(ctx context.Context, args []string) error {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	save := exportCmd.Bool("save", false, "Write the file to the export directory")
	entryID := exportCmd.String("entry", "", "Export a saved list from history instead of the current one")
	exportCmd.Parse(reorder(args))

	mode := export.ModeView
	if *save {
		mode = export.ModeSave
	}

	var (
		path string
		err  error
	)
	if *entryID != "" {
		var entry history.Entry
		entry, err = c.session.History().Get(ctx, *entryID)
		if err != nil {
			return err
		}
		path, err = c.exporter.ExportEntry(mode, os.Stdout, entry)
	} else {
		c.sync(ctx)
		path, err = c.exporter.Export(mode, os.Stdout, c.session.List().Items(), time.Now())
	}
	if err != nil {
		return err
	}
	if path != "" {
		fmt.Printf("Saved %s\n", path)
	}
	return nil
}

func (c *cli) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return apperr.Validation("import takes exactly one file", nil)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	parsed, err := export.Parse(f)
	if err != nil {
		return err
	}
	items := export.ImportItems(parsed.Rows)
	if len(items) == 0 {
		fmt.Println("Nothing to import.")
		return nil
	}

	c.sync(ctx)
	added, err := c.session.List().AddMany(ctx, items)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d items.\n", len(added))
	return nil
}

func (c *cli) theme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Println(c.kv.Theme(ctx))
		return nil
	}
	switch args[0] {
	case kvstore.ThemeDark, kvstore.ThemeLight:
		return c.kv.SetTheme(ctx, args[0])
	default:
		return apperr.Validation(fmt.Sprintf("theme must be %s or %s", kvstore.ThemeDark, kvstore.ThemeLight), nil)
	}
}

func (c *cli) stats(ctx context.Context, args []string) error {
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	days := statsCmd.Int("days", 7, "Show the last N days")
	statsCmd.Parse(args)

	usage, err := c.activity.GetDailyActivity(ctx, *days)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		fmt.Println("No activity recorded.")
		return nil
	}
	fmt.Printf("%-10s %6s %6s %6s %9s\n", "Day", "Local", "Remote", "Alerts", "Completed")
	for _, d := range usage {
		fmt.Printf("%-10s %6d %6d %6d %9d\n", d.Date, d.LocalChanges, d.RemoteApplied, d.ForeignAddition, d.Completed)
	}
	return nil
}

func (c *cli) status(ctx context.Context) {
	c.whoami()
	if c.session.PairingCode() != "" {
		c.sync(ctx)
		switch err := c.session.SyncError(); {
		case err != nil:
			fmt.Printf("Sync: unavailable (%s)\n", apperr.UserMessage(err))
		case c.session.Syncing():
			fmt.Println("Sync: live")
		default:
			fmt.Println("Sync: local only")
		}
	}

	h := metrics.GetHealth(c.dbPath)
	fmt.Printf("Items: %d  Database: %s  Memory: %d MB (sys %d MB)  GC: %d  Goroutines: %d\n",
		c.session.List().Len(), h.DBSize, h.AllocMB, h.SysMB, h.NumGC, h.Goroutines)
}

// listOrder is the order ls prints items in: grouped by category.
func listOrder(items []shopping.Item) []shopping.Item {
	var out []shopping.Item
	for _, g := range shopping.GroupByCategory(items) {
		out = append(out, g.Items...)
	}
	return out
}

func printList(items []shopping.Item) {
	if len(items) == 0 {
		fmt.Println("The list is empty.")
		return
	}

	n := 0
	for _, g := range shopping.GroupByCategory(items) {
		fmt.Printf("\n%s %s\n", g.Category.Icon(), g.Category)
		for _, item := range g.Items {
			n++
			line := fmt.Sprintf("%3d. %s %s  %s  %s",
				n, export.StatusMarker(item.Bought), item.Name, export.FormatQuantity(item.Quantity, item.Unit), export.FormatPrice(item.Price))
			if item.AddedBy != "" {
				line += "  (" + item.AddedBy + ")"
			}
			fmt.Println(line)
		}
	}

	t := shopping.ComputeTotals(items)
	fmt.Printf("\nProgress: %d%%  Total: %s  Bought: %s  Remaining: %s\n",
		shopping.Progress(items), export.FormatMoney(t.Total), export.FormatMoney(t.Bought), export.FormatMoney(t.Remaining))
}

// parseAmount accepts "4.50", "4,50" and "R$ 4,50".
func parseAmount(s string) (*float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid price %q", s), err)
	}
	return shopping.Float(v), nil
}

// reorder moves flags ahead of positional arguments so "add Arroz -qty 2" parses.
func reorder(args []string) []string {
	var flags, rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") || a == "-" {
			rest = append(rest, a)
			continue
		}
		flags = append(flags, a)
		if !strings.Contains(a, "=") && i+1 < len(args) && !isBoolFlag(a) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, rest...)
}

func isBoolFlag(a string) bool {
	name := strings.TrimLeft(a, "-")
	return name == "clear-price" || name == "yes" || name == "save"
}
