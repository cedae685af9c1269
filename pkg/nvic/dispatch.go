package nvic

// Handler services one interrupt vector.
type Handler func()

type entry struct {
	handler  Handler
	priority Priority
	used     bool
}

// Dispatcher binds vectors to handlers with an explicit priority each. The
// table is fixed size so it can live in a firmware image without allocation.
type Dispatcher struct {
	table [NumIRQ]entry
	order []IRQ
}

// Register binds handler to irq. Registering the same vector twice replaces
// the handler and priority.
func (d *Dispatcher) Register(irq IRQ, priority Priority, handler Handler) {
	if !d.table[irq].used {
		d.order = append(d.order, irq)
	}
	d.table[irq] = entry{handler: handler, priority: priority, used: true}
}

// Arm writes every registered priority to the controller and then enables the
// vectors in registration order. Priorities are set first so no vector runs
// at the reset priority.
func (d *Dispatcher) Arm(c Controller) {
	for _, irq := range d.order {
		c.SetPriority(irq, d.table[irq].priority)
	}
	for _, irq := range d.order {
		c.EnableIRQ(irq)
	}
}

// Disarm disables every registered vector.
func (d *Dispatcher) Disarm(c Controller) {
	for _, irq := range d.order {
		c.DisableIRQ(irq)
	}
}

// Dispatch runs the handler for irq. Unregistered vectors are ignored, which
// matches the default handler doing nothing.
func (d *Dispatcher) Dispatch(irq IRQ) {
	e := &d.table[irq]
	if e.used && e.handler != nil {
		e.handler()
	}
}

// Priority returns the registered priority of irq.
func (d *Dispatcher) Priority(irq IRQ) (Priority, bool) {
	e := d.table[irq]
	return e.priority, e.used
}

// Registered lists the vectors in registration order.
func (d *Dispatcher) Registered() []IRQ {
	return d.order
}
