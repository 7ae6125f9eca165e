package models

// EntityID returns the primary key.
func (e *Employee) EntityID() string { return e.ID }

// EntityID returns the primary key.
func (t *Template) EntityID() string { return t.ID }

// EntityID returns the primary key.
func (g *GeneratedCard) EntityID() string { return g.ID }

// EntityID returns the primary key.
func (p *PaymentTransaction) EntityID() string { return p.ID }
