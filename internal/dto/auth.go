package dto

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// RegisterRequest self-registers a faculty member or student.
type RegisterRequest struct {
	Role            string `form:"role" json:"role" validate:"required,oneof=FACULTY STUDENT"`
	FullName        string `form:"full_name" json:"full_name" validate:"required,min=3,max=150"`
	Email           string `form:"email" json:"email" validate:"required,email,max=255"`
	Password        string `form:"password" json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" validate:"required,eqfield=Password"`
	Department      string `form:"department" json:"department" validate:"required,max=100"`

	EmployeeID  string `form:"employee_id" json:"employee_id" validate:"required_if=Role FACULTY,max=50"`
	Designation string `form:"designation" json:"designation" validate:"max=100"`
	Phone       string `form:"phone" json:"phone" validate:"max=30"`

	StudentNumber string `form:"student_number" json:"student_number" validate:"required_if=Role STUDENT,max=50"`
	YearLevel     string `form:"year_level" json:"year_level"`
	Semester      string `form:"semester" json:"semester"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the password reset flow.
type ResetPasswordRequest struct {
	Token           string `form:"token" json:"token" validate:"required"`
	Password        string `form:"password" json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" validate:"required,eqfield=Password"`
}

// ChangePasswordRequest updates the password of the signed in user.
type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password" validate:"required"`
	NewPassword     string `form:"new_password" json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ResendVerificationRequest asks for a new verification email.
type ResendVerificationRequest struct {
	Email string `form:"email" json:"email" validate:"required,email"`
}
