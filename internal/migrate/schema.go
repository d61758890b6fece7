package migrate

import (
	"fmt"
	"strings"

	"github.com/shomere/ICR-Projects/internal/models"
)

// DefaultBucket is the public storage bucket product images are uploaded to.
const DefaultBucket = "product-images"

// Tables lists every application table, in dependency order.
var Tables = []string{
	"profiles",
	"products",
	"product_requests",
	"orders",
	"order_items",
	"contact_messages",
	"inventory",
}

type enumType struct {
	name   string
	values []string
}

func values[T ~string](vs ...T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

var enums = []enumType{
	{"user_role", values(models.RoleAdmin, models.RoleClient)},
	{"product_category", values(models.Categories...)},
	{"request_status", values(models.RequestPending, models.RequestReviewed, models.RequestQuoted,
		models.RequestApproved, models.RequestRejected)},
	{"order_status", values(models.OrderPending, models.OrderConfirmed, models.OrderProcessing,
		models.OrderShipped, models.OrderDelivered, models.OrderCancelled)},
}

var tableDDL = map[string]string{
	"profiles": `CREATE TABLE IF NOT EXISTS public.profiles (
  id uuid PRIMARY KEY,
  email text UNIQUE NOT NULL,
  full_name text NOT NULL DEFAULT 'New User',
  company_name text,
  phone text,
  address text,
  role user_role NOT NULL DEFAULT 'client',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`,
	"products": `CREATE TABLE IF NOT EXISTS public.products (
  id uuid PRIMARY KEY DEFAULT uuid_generate_v4(),
  name text NOT NULL,
  description text NOT NULL DEFAULT '',
  category product_category NOT NULL,
  price numeric(12,2) CHECK (price IS NULL OR price >= 0),
  image_url text,
  specifications jsonb NOT NULL DEFAULT '{}'::jsonb,
  is_active boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`,
	"product_requests": `CREATE TABLE IF NOT EXISTS public.product_requests (
  id uuid PRIMARY KEY DEFAULT uuid_generate_v4(),
  client_id uuid NOT NULL REFERENCES public.profiles(id) ON DELETE CASCADE,
  product_category product_category NOT NULL,
  product_name text NOT NULL,
  description text NOT NULL DEFAULT '',
  quantity integer NOT NULL CHECK (quantity > 0),
  budget_range text,
  deadline date,
  status request_status NOT NULL DEFAULT 'pending',
  admin_notes text,
  quote_amount numeric(12,2) CHECK (quote_amount IS NULL OR quote_amount >= 0),
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`,
	"orders": `CREATE TABLE IF NOT EXISTS public.orders (
  id uuid PRIMARY KEY DEFAULT uuid_generate_v4(),
  client_id uuid NOT NULL REFERENCES public.profiles(id) ON DELETE CASCADE,
  order_number text UNIQUE NOT NULL,
  total_amount numeric(12,2) NOT NULL DEFAULT 0 CHECK (total_amount >= 0),
  status order_status NOT NULL DEFAULT 'pending',
  shipping_address text NOT NULL DEFAULT '',
  notes text,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`,
	"order_items": `CREATE TABLE IF NOT EXISTS public.order_items (
  id uuid PRIMARY KEY DEFAULT uuid_generate_v4(),
  order_id uuid NOT NULL REFERENCES public.orders(id) ON DELETE CASCADE,
  product_id uuid NOT NULL REFERENCES public.products(id),
  quantity integer NOT NULL CHECK (quantity > 0),
  unit_price numeric(12,2) NOT NULL CHECK (unit_price >= 0),
  total_price numeric(12,2) NOT NULL CHECK (total_price >= 0),
  created_at timestamptz NOT NULL DEFAULT now()
)`,
	"contact_messages": `CREATE TABLE IF NOT EXISTS public.contact_messages (
  id uuid PRIMARY KEY DEFAULT uuid_generate_v4(),
  name text NOT NULL,
  email text NOT NULL,
  company text,
  product_interest product_category,
  message text NOT NULL,
  is_read boolean NOT NULL DEFAULT false,
  created_at timestamptz NOT NULL DEFAULT now()
)`,
	"inventory": `CREATE TABLE IF NOT EXISTS public.inventory (
  id uuid PRIMARY KEY DEFAULT uuid_generate_v4(),
  product_id uuid NOT NULL REFERENCES public.products(id) ON DELETE CASCADE,
  quantity_available integer NOT NULL DEFAULT 0 CHECK (quantity_available >= 0),
  minimum_stock integer NOT NULL DEFAULT 0 CHECK (minimum_stock >= 0),
  last_updated timestamptz NOT NULL DEFAULT now()
)`,
}

// Policy is a row-level security policy on a public table.
type Policy struct {
	Table string
	Name  string
	// Command is SELECT, INSERT, UPDATE, DELETE or ALL.
	Command string
	To      string
	Using   string
	Check   string
}

const ownOrAdmin = "auth.uid() = client_id OR public.is_admin()"

// Policies scope rows to their owner, with admins seeing everything.
var Policies = []Policy{
	{Table: "profiles", Name: "Users can view their own profile", Command: "SELECT",
		Using: "auth.uid() = id OR public.is_admin()"},
	{Table: "profiles", Name: "Users can update their own profile", Command: "UPDATE",
		Using: "auth.uid() = id OR public.is_admin()",
		Check: "public.is_admin() OR (auth.uid() = id AND role = 'client')"},
	{Table: "profiles", Name: "Users can insert their own profile", Command: "INSERT",
		Check: "auth.uid() = id"},

	{Table: "products", Name: "Anyone can view active products", Command: "SELECT",
		Using: "is_active OR public.is_admin()"},
	{Table: "products", Name: "Admins can manage products", Command: "ALL",
		Using: "public.is_admin()", Check: "public.is_admin()"},

	{Table: "product_requests", Name: "Clients can view their own requests", Command: "SELECT",
		Using: ownOrAdmin},
	{Table: "product_requests", Name: "Clients can create their own requests", Command: "INSERT",
		Check: "auth.uid() = client_id AND status = 'pending'"},
	{Table: "product_requests", Name: "Admins can update requests", Command: "UPDATE",
		Using: "public.is_admin()", Check: "public.is_admin()"},

	{Table: "orders", Name: "Clients can view their own orders", Command: "SELECT",
		Using: ownOrAdmin},
	{Table: "orders", Name: "Admins can manage orders", Command: "ALL",
		Using: "public.is_admin()", Check: "public.is_admin()"},

	{Table: "order_items", Name: "Users can view items of visible orders", Command: "SELECT",
		Using: "EXISTS (SELECT 1 FROM public.orders o WHERE o.id = order_id AND (o.client_id = auth.uid() OR public.is_admin()))"},
	{Table: "order_items", Name: "Admins can manage order items", Command: "ALL",
		Using: "public.is_admin()", Check: "public.is_admin()"},

	{Table: "contact_messages", Name: "Anyone can send a message", Command: "INSERT", To: "anon, authenticated",
		Check: "is_read = false"},
	{Table: "contact_messages", Name: "Admins can read messages", Command: "SELECT",
		Using: "public.is_admin()"},
	{Table: "contact_messages", Name: "Admins can update messages", Command: "UPDATE",
		Using: "public.is_admin()", Check: "public.is_admin()"},

	{Table: "inventory", Name: "Admins can manage inventory", Command: "ALL",
		Using: "public.is_admin()", Check: "public.is_admin()"},
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (p Policy) sql() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DROP POLICY IF EXISTS %s ON public.%s;\n", quoteIdent(p.Name), p.Table)
	fmt.Fprintf(&b, "CREATE POLICY %s ON public.%s FOR %s", quoteIdent(p.Name), p.Table, p.Command)
	if p.To != "" {
		fmt.Fprintf(&b, " TO %s", p.To)
	}
	if p.Using != "" {
		fmt.Fprintf(&b, " USING (%s)", p.Using)
	}
	if p.Check != "" {
		fmt.Fprintf(&b, " WITH CHECK (%s)", p.Check)
	}
	return b.String()
}

func enumSQL(e enumType) string {
	vals := make([]string, len(e.values))
	for i, v := range e.values {
		vals[i] = quoteLiteral(v)
	}
	return fmt.Sprintf(`DO $$ BEGIN
  CREATE TYPE public.%s AS ENUM (%s);
EXCEPTION
  WHEN duplicate_object THEN null;
END $$`, e.name, strings.Join(vals, ", "))
}

const profilesForeignKey = `DO $$ BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM information_schema.table_constraints
    WHERE constraint_name = 'profiles_id_fkey' AND table_name = 'profiles'
  ) THEN
    ALTER TABLE public.profiles
      ADD CONSTRAINT profiles_id_fkey FOREIGN KEY (id) REFERENCES auth.users(id) ON DELETE CASCADE;
  END IF;
END $$`

const isAdminFunction = `CREATE OR REPLACE FUNCTION public.is_admin()
RETURNS boolean
LANGUAGE sql
STABLE
SECURITY DEFINER
SET search_path = public
AS $$
  SELECT EXISTS (SELECT 1 FROM public.profiles WHERE id = auth.uid() AND role = 'admin');
$$`

const handleNewUserFunction = `CREATE OR REPLACE FUNCTION public.handle_new_user()
RETURNS trigger
LANGUAGE plpgsql
SECURITY DEFINER
SET search_path = public
AS $$
BEGIN
  INSERT INTO public.profiles (id, email, full_name, role)
  VALUES (
    NEW.id,
    NEW.email,
    COALESCE(NEW.raw_user_meta_data->>'full_name', 'New User'),
    'client'
  );
  RETURN NEW;
EXCEPTION
  WHEN unique_violation THEN
    RETURN NEW;
  WHEN OTHERS THEN
    RAISE WARNING 'handle_new_user failed for %: %', NEW.id, SQLERRM;
    RETURN NEW;
END;
$$`

const (
	// TriggerName fires handle_new_user after every auth sign-up.
	TriggerName = "on_auth_user_created"
	// FunctionName creates the profile row for a new auth user.
	FunctionName = "handle_new_user"
)
