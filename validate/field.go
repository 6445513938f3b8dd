package validate

import "unicode/utf8"

// Field is a form-field validation outcome. Message is empty when Valid.
type Field struct {
	Valid   bool   `json:"isValid"`
	Message string `json:"message"`
}

func field(ok bool, msg string) Field {
	if ok {
		return Field{Valid: true}
	}
	return Field{Message: msg}
}

func EmailField(s string) Field {
	return field(Email(s), "Please enter a valid email address")
}

func PhoneField(s string) Field {
	return field(PhoneNumber(s), "Please enter a valid phone number")
}

func PasswordField(s string) Field {
	return field(Password(s), "Password must meet security requirements")
}

// NameField requires at least two characters.
func NameField(s string) Field {
	return field(utf8.RuneCountInString(s) >= 2, "Name must be at least 2 characters")
}

// ConfirmPasswordField requires confirm to be non-empty and equal to password.
func ConfirmPasswordField(password, confirm string) Field {
	return field(confirm != "" && confirm == password, "Passwords do not match")
}
